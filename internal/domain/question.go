package domain

// Question is a single prompt shown to the learner together with the set of
// accepted answers. Questions are produced by the catalog; the scheduler only
// ever sees the prompt text, which doubles as the card key.
type Question struct {
	Prompt  string   `json:"prompt"`
	Answers []string `json:"answers"`
}
