package ast

import "fmt"

// Pos is a single point in the grammar source, mirroring the position
// information the bootstrap parser attaches to every token it recognizes.
type Pos struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Col    int `json:"column"`
}

// String formats a position as line:column followed by the offset in
// parentheses.
func (p Pos) String() string {
	return fmt.Sprintf("%d:%d (%d)", p.Line, p.Col, p.Offset)
}

// Location spans two positions in the grammar source. Every node in the
// tree carries one.
type Location struct {
	Start Pos `json:"start"`
	End   Pos `json:"end"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s-%s", l.Start, l.End)
}
