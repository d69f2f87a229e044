package sql

import "fmt"

type NodeType int

const (
	NodeGet NodeType = iota
	NodeScan
	NodeProject
	NodePut
	NodeDelete
)

type PlanNode interface {
	Type() NodeType
	String() string
	Children() []PlanNode
}

// GetNode reads the listed rows in order.
type GetNode struct {
	Table     string
	Keys      [][]byte
	Before    int64
	HasBefore bool
	Reverse   bool
	Limit     int
}

func (n *GetNode) Type() NodeType       { return NodeGet }
func (n *GetNode) String() string       { return fmt.Sprintf("Get(%s, %q)", n.Table, n.Keys) }
func (n *GetNode) Children() []PlanNode { return nil }

// ScanNode reads a row key range or prefix. A nil Start and Stop scan the
// whole table.
type ScanNode struct {
	Table     string
	Start     []byte
	Stop      []byte
	Prefix    []byte
	Before    int64
	HasBefore bool
	Reverse   bool
	Limit     int
}

func (n *ScanNode) Type() NodeType { return NodeScan }
func (n *ScanNode) String() string {
	if n.Prefix != nil {
		return fmt.Sprintf("Scan(%s, prefix=%q)", n.Table, n.Prefix)
	}
	return fmt.Sprintf("Scan(%s, [%q, %q))", n.Table, n.Start, n.Stop)
}
func (n *ScanNode) Children() []PlanNode { return nil }

// ProjectNode narrows its input to Columns. Empty Columns keeps every
// column unless KeyOnly is set, which keeps none.
type ProjectNode struct {
	Input   PlanNode
	Columns []string
	KeyOnly bool
}

func (n *ProjectNode) Type() NodeType       { return NodeProject }
func (n *ProjectNode) String() string       { return fmt.Sprintf("Project(%v)", n.Columns) }
func (n *ProjectNode) Children() []PlanNode { return []PlanNode{n.Input} }

// PutNode writes one row per entry of Rows.
type PutNode struct {
	Table string
	Rows  []PutRow
}

// PutRow is one tuple of an INSERT. Without a timestamp the row is written
// at the connection clock's now.
type PutRow struct {
	Key          []byte
	Data         map[string][]byte
	Timestamp    int64
	HasTimestamp bool
}

func (n *PutNode) Type() NodeType       { return NodePut }
func (n *PutNode) String() string       { return fmt.Sprintf("Put(%s, %d rows)", n.Table, len(n.Rows)) }
func (n *PutNode) Children() []PlanNode { return nil }

// DeleteNode removes whole rows, or their versions up to UpTo.
type DeleteNode struct {
	Table   string
	Keys    [][]byte
	UpTo    int64
	HasUpTo bool
}

func (n *DeleteNode) Type() NodeType       { return NodeDelete }
func (n *DeleteNode) String() string       { return fmt.Sprintf("Delete(%s, %q)", n.Table, n.Keys) }
func (n *DeleteNode) Children() []PlanNode { return nil }
