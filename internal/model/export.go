package model

// UserDoc is one entry of the users document: username -> {password, token}.
type UserDoc struct {
	Password string `json:"password" yaml:"password"`
	Token    string `json:"token" yaml:"token"`
}

// UsersDocument is the on-disk shape of users.json.
type UsersDocument map[string]UserDoc

// ChaptersDocument is the on-disk shape of chapters.json.
type ChaptersDocument map[string]Chapter

// DefaultChapters is written when no chapters exist on first run.
func DefaultChapters() ChaptersDocument {
	return ChaptersDocument{
		"chapter1": {
			ID:   "chapter1",
			Name: "Introduction to Law",
			Questions: []Question{
				{ID: "q1", Text: "What are the main sources of law in Pakistan? Explain each briefly.", Marks: 5},
				{ID: "q2", Text: "Differentiate between civil law and criminal law with examples.", Marks: 5},
			},
		},
	}
}
