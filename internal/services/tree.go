package services

import (
	"cmp"
	"slices"

	"threadline/internal/models"
)

// DefaultMaxDepth bounds lineage walks when no limit is configured.
const DefaultMaxDepth = 512

type TreeNode struct {
	Comment  models.Comment `json:"comment"`
	Children []*TreeNode    `json:"children"`
}

type TreeOptions struct {
	MinScore *int // nil keeps every comment
	MaxDepth int
}

// BuildTree nests a commentable's flat comment set. Roots are comments
// without a parent in the set. MinScore applies to roots only: a root below
// it is dropped with its whole subtree, and every reply under a kept root
// stays. Siblings are ordered by score descending, then oldest first.
func BuildTree(comments []models.Comment, opts TreeOptions) ([]*TreeNode, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	byID := make(map[uint]int, len(comments))
	for i, c := range comments {
		byID[c.ID] = i
	}
	if err := checkLineage(comments, byID, maxDepth); err != nil {
		return nil, err
	}

	nodes := make(map[uint]*TreeNode, len(comments))
	for _, c := range comments {
		nodes[c.ID] = &TreeNode{Comment: c}
	}

	var roots []*TreeNode
	for _, c := range comments {
		n := nodes[c.ID]
		if c.ParentID != nil {
			if parent, inSet := nodes[*c.ParentID]; inSet {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		// A pruned root takes its subtree with it.
		if opts.MinScore != nil && c.Score < *opts.MinScore {
			continue
		}
		roots = append(roots, n)
	}

	sortLevel(roots)
	stack := slices.Clone(roots)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sortLevel(n.Children)
		stack = append(stack, n.Children...)
	}
	return roots, nil
}

func sortLevel(nodes []*TreeNode) {
	slices.SortFunc(nodes, func(a, b *TreeNode) int {
		if c := cmp.Compare(b.Comment.Score, a.Comment.Score); c != 0 {
			return c
		}
		if c := a.Comment.CreatedAt.Compare(b.Comment.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Comment.ID, b.Comment.ID)
	})
}

// checkLineage follows parent pointers once per comment, memoising depths.
// Revisiting a comment still on the current path means a cycle.
func checkLineage(comments []models.Comment, byID map[uint]int, maxDepth int) error {
	const visiting = -1
	depth := make(map[uint]int, len(comments))

	for _, c := range comments {
		if ids, err := c.AncestorIDs(); err == nil && slices.Contains(ids, c.ID) {
			return &IntegrityError{CommentID: c.ID, Reason: "comment is its own ancestor"}
		}
		if _, done := depth[c.ID]; done {
			continue
		}

		var path []uint
		base := -1
		cur := c
		for {
			if d, seen := depth[cur.ID]; seen {
				if d == visiting {
					return &IntegrityError{CommentID: cur.ID, Reason: "comment is its own ancestor"}
				}
				base = d
				break
			}
			depth[cur.ID] = visiting
			path = append(path, cur.ID)
			if cur.ParentID == nil {
				break
			}
			i, ok := byID[*cur.ParentID]
			if !ok {
				break
			}
			cur = comments[i]
		}

		for i := len(path) - 1; i >= 0; i-- {
			base++
			if base > maxDepth {
				return &IntegrityError{CommentID: path[i], Reason: "thread exceeds maximum depth"}
			}
			depth[path[i]] = base
		}
	}
	return nil
}

// FlatComment is one row of a thread rendered top to bottom.
type FlatComment struct {
	models.Comment
	Depth int `json:"depth"`
}

// FlattenTree lists the tree in display order (pre-order).
func FlattenTree(roots []*TreeNode) []FlatComment {
	type frame struct {
		node  *TreeNode
		depth int
	}
	var out []FlatComment
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, FlatComment{Comment: f.node.Comment, Depth: f.depth})
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.depth + 1})
		}
	}
	return out
}
