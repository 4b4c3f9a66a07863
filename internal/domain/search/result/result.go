package result

// Match is a single similarity hit.
type Match struct {
	id       string
	title    string
	abstract string
	score    float64
}

// New creates a similarity match.
func New(id, title, abstract string, score float64) Match {
	return Match{id: id, title: title, abstract: abstract, score: score}
}

// ID returns the project identifier.
func (m *Match) ID() string { return m.id }

// Title returns the project title.
func (m *Match) Title() string { return m.title }

// Abstract returns the project abstract.
func (m *Match) Abstract() string { return m.abstract }

// Score returns the cosine similarity, higher is closer.
func (m *Match) Score() float64 { return m.score }
