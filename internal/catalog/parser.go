package catalog

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/jomof/kana-game/internal/domain"
)

const (
	promptPrefix = "P:"
	answerPrefix = "A:"
)

type parseState int

const (
	seeking parseState = iota
	readingPrompt
	readingAnswer
)

// ParseFile reads a question file from the given path and extracts all
// questions.
func ParseFile(path string) ([]domain.Question, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads questions from an io.Reader. A question is a "P:" block
// followed by one "A:" block per accepted answer; blocks may span multiple
// lines. "---" or a new "P:" starts the next question. Text outside a block
// is ignored.
func Parse(r io.Reader) ([]domain.Question, error) {
	scanner := bufio.NewScanner(r)
	var questions []domain.Question
	var current domain.Question
	var block []string
	state := seeking

	finishBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch state {
		case readingPrompt:
			current.Prompt = content
		case readingAnswer:
			current.Answers = append(current.Answers, content)
		}
		block = nil
	}

	finishQuestion := func() {
		finishBlock()
		if current.Prompt != "" {
			questions = append(questions, current)
		}
		current = domain.Question{}
		state = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishQuestion()
			continue
		}

		switch {
		case strings.HasPrefix(line, promptPrefix):
			if state != seeking {
				finishQuestion()
			}
			state = readingPrompt
			block = append(block, trimPrefix(line, promptPrefix))

		case strings.HasPrefix(line, answerPrefix):
			finishBlock()
			state = readingAnswer
			block = append(block, trimPrefix(line, answerPrefix))

		default:
			if state != seeking {
				block = append(block, line)
			}
		}
	}

	finishQuestion() // Finish the very last question in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return questions, nil
}

func trimPrefix(line, prefix string) string {
	content := line[len(prefix):]
	if strings.HasPrefix(content, " ") {
		content = content[1:]
	}
	return content
}
