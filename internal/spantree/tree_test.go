package spantree

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/agenticgokit/tracelens/internal/model"
)

func obs(id, parent string) model.Observation {
	return model.Observation{ID: id, ParentID: parent, Kind: model.KindSpan, Name: "span-" + id}
}

// outline renders the forest as "depth:id" lines for comparisons
func outline(roots []*Node) []string {
	var lines []string
	Walk(roots, func(n *Node, depth int) bool {
		lines = append(lines, fmt.Sprintf("%s%s", strings.Repeat(".", depth), n.Observation.ID))
		return true
	})
	return lines
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name  string
		input []model.Observation
		want  []string
	}{
		{
			name:  "empty",
			input: nil,
			want:  nil,
		},
		{
			name: "single root with ordered children",
			input: []model.Observation{
				obs("root", ""),
				obs("b", "root"),
				obs("a", "root"),
				obs("b1", "b"),
			},
			want: []string{"root", ".b", "..b1", ".a"},
		},
		{
			name: "child listed before parent",
			input: []model.Observation{
				obs("c", "p"),
				obs("p", ""),
			},
			want: []string{"p", ".c"},
		},
		{
			name: "dangling parent becomes root",
			input: []model.Observation{
				obs("root", ""),
				obs("orphan", "missing"),
				obs("child", "orphan"),
			},
			want: []string{"root", "orphan", ".child"},
		},
		{
			name: "two node cycle",
			input: []model.Observation{
				obs("A", "B"),
				obs("B", "A"),
			},
			want: []string{"A", ".B"},
		},
		{
			name: "self parent",
			input: []model.Observation{
				obs("self", "self"),
			},
			want: []string{"self"},
		},
		{
			name: "tail hanging off a cycle",
			input: []model.Observation{
				obs("t", "x"),
				obs("x", "y"),
				obs("y", "z"),
				obs("z", "x"),
			},
			want: []string{"x", ".t", ".z", "..y"},
		},
		{
			name: "duplicate id keeps both nodes",
			input: []model.Observation{
				obs("d", ""),
				obs("d", ""),
				obs("c", "d"),
			},
			want: []string{"d", ".c", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outline(Build(tt.input))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Build() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildCycleHasRoot(t *testing.T) {
	roots := Build([]model.Observation{obs("A", "B"), obs("B", "A")})
	if len(roots) == 0 {
		t.Fatal("expected at least one root")
	}
	id := roots[0].Observation.ID
	if id != "A" && id != "B" {
		t.Errorf("root = %q, want A or B", id)
	}
}

// TestBuildPreservesNodes checks that no node is dropped or duplicated and that
// every attached child sits under the parent it names, over random inputs that
// include dangling references and cycles.
func TestBuildPreservesNodes(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		size := rng.Intn(40)
		input := make([]model.Observation, size)
		for i := range input {
			parent := ""
			switch rng.Intn(4) {
			case 0:
				// root
			case 1:
				parent = fmt.Sprintf("missing-%d", rng.Intn(5))
			default:
				if size > 0 {
					parent = fmt.Sprintf("n%d", rng.Intn(size))
				}
			}
			input[i] = obs(fmt.Sprintf("n%d", i), parent)
		}

		roots := Build(input)
		if got := Count(roots); got != size {
			t.Fatalf("round %d: Count() = %d, want %d", round, got, size)
		}

		seen := make(map[string]int)
		Walk(roots, func(n *Node, _ int) bool {
			seen[n.Observation.ID]++
			for _, child := range n.Children {
				if child.Observation.ParentID != n.Observation.ID {
					t.Errorf("round %d: child %s attached to %s, parentId %s",
						round, child.Observation.ID, n.Observation.ID, child.Observation.ParentID)
				}
			}
			return true
		})
		for _, o := range input {
			if seen[o.ID] != 1 {
				t.Errorf("round %d: node %s seen %d times", round, o.ID, seen[o.ID])
			}
		}
	}
}

func TestWalkSkipsChildren(t *testing.T) {
	roots := Build([]model.Observation{
		obs("r", ""),
		obs("a", "r"),
		obs("a1", "a"),
		obs("b", "r"),
	})

	var visited []string
	Walk(roots, func(n *Node, _ int) bool {
		visited = append(visited, n.Observation.ID)
		return n.Observation.ID != "a"
	})

	want := []string{"r", "a", "b"}
	if diff := cmp.Diff(want, visited); diff != "" {
		t.Errorf("Walk() mismatch (-want +got):\n%s", diff)
	}
}
