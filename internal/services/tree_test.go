package services

import (
	"errors"
	"testing"
	"time"

	"threadline/internal/models"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func comment(id uint, parent *models.Comment, score int) models.Comment {
	c := models.Comment{
		ID:              id,
		CommentableType: string(models.CommentableArticle),
		CommentableID:   1,
		Score:           score,
		CreatedAt:       epoch.Add(time.Duration(id) * time.Minute),
	}
	if parent != nil {
		c.ParentID = &parent.ID
		c.Ancestry = parent.ChildAncestry()
	}
	return c
}

func ids(nodes []*TreeNode) []uint {
	out := make([]uint, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Comment.ID)
	}
	return out
}

func equalIDs(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildTreeNestsReplies(t *testing.T) {
	a := comment(1, nil, 5)
	b := comment(2, &a, 0)
	c := comment(3, nil, 1)

	roots, err := BuildTree([]models.Comment{a, b, c}, TreeOptions{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if got := ids(roots); !equalIDs(got, []uint{1, 3}) {
		t.Fatalf("roots = %v, want [1 3]", got)
	}
	if got := ids(roots[0].Children); !equalIDs(got, []uint{2}) {
		t.Errorf("children of 1 = %v, want [2]", got)
	}
	if len(roots[1].Children) != 0 {
		t.Errorf("3 should have no children")
	}
}

func TestBuildTreeThresholdKeepsRepliesOfQualifyingRoots(t *testing.T) {
	a := comment(1, nil, 1)
	b := comment(2, &a, 0)
	c := comment(3, nil, 0)
	all := []models.Comment{a, b, c}

	roots, err := BuildTree(all, TreeOptions{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if got := ids(roots); !equalIDs(got, []uint{1, 3}) {
		t.Fatalf("unfiltered roots = %v, want [1 3]", got)
	}
	if got := ids(roots[0].Children); !equalIDs(got, []uint{2}) {
		t.Errorf("unfiltered children of 1 = %v, want [2]", got)
	}

	minScore := 1
	roots, err = BuildTree(all, TreeOptions{MinScore: &minScore})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if got := ids(roots); !equalIDs(got, []uint{1}) {
		t.Fatalf("roots = %v, want [1]", got)
	}
	if got := ids(roots[0].Children); !equalIDs(got, []uint{2}) {
		t.Errorf("children of 1 = %v, want [2]", got)
	}
}

func TestBuildTreeThresholdDropsSubtreeOfLowRoot(t *testing.T) {
	low := comment(1, nil, 0)
	reply := comment(2, &low, 10)
	kept := comment(3, nil, 2)

	minScore := 1
	roots, err := BuildTree([]models.Comment{low, reply, kept}, TreeOptions{MinScore: &minScore})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if got := ids(roots); !equalIDs(got, []uint{3}) {
		t.Fatalf("roots = %v, want [3]", got)
	}
	for _, f := range FlattenTree(roots) {
		if f.ID == 2 {
			t.Errorf("reply under a pruned root leaked into the tree")
		}
	}
}

func TestBuildTreeSiblingOrder(t *testing.T) {
	root := comment(1, nil, 0)
	low := comment(2, &root, 1)
	high := comment(3, &root, 9)
	tieOld := comment(4, &root, 5)
	tieNew := comment(5, &root, 5)

	roots, err := BuildTree([]models.Comment{root, tieNew, low, high, tieOld}, TreeOptions{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if got := ids(roots[0].Children); !equalIDs(got, []uint{3, 4, 5, 2}) {
		t.Errorf("order = %v, want [3 4 5 2]", got)
	}
}

func TestBuildTreeOrphanBecomesRoot(t *testing.T) {
	gone := comment(1, nil, 0)
	child := comment(2, &gone, 0)

	roots, err := BuildTree([]models.Comment{child}, TreeOptions{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if got := ids(roots); !equalIDs(got, []uint{2}) {
		t.Errorf("roots = %v, want [2]", got)
	}
}

func TestBuildTreeEmpty(t *testing.T) {
	roots, err := BuildTree(nil, TreeOptions{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if len(roots) != 0 {
		t.Errorf("roots = %v, want none", ids(roots))
	}
}

func TestBuildTreeDetectsCycle(t *testing.T) {
	a := comment(1, nil, 0)
	b := comment(2, &a, 0)
	a.ParentID = &b.ID

	_, err := BuildTree([]models.Comment{a, b}, TreeOptions{})
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want IntegrityError", err)
	}
}

func TestBuildTreeSelfAncestor(t *testing.T) {
	a := comment(1, nil, 0)
	a.Ancestry = "1"

	_, err := BuildTree([]models.Comment{a}, TreeOptions{})
	var ie *IntegrityError
	if !errors.As(err, &ie) || ie.CommentID != 1 {
		t.Fatalf("err = %v, want IntegrityError for 1", err)
	}
}

func TestBuildTreeMaxDepth(t *testing.T) {
	chain := []models.Comment{comment(1, nil, 0)}
	for id := uint(2); id <= 5; id++ {
		parent := chain[len(chain)-1]
		chain = append(chain, comment(id, &parent, 0))
	}

	if _, err := BuildTree(chain, TreeOptions{MaxDepth: 4}); err != nil {
		t.Fatalf("depth 4 chain rejected: %v", err)
	}
	_, err := BuildTree(chain, TreeOptions{MaxDepth: 3})
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want IntegrityError", err)
	}
}

func TestBuildTreeDeepChainIsIterative(t *testing.T) {
	chain := []models.Comment{comment(1, nil, 0)}
	for id := uint(2); id <= 400; id++ {
		parent := chain[len(chain)-1]
		chain = append(chain, comment(id, &parent, 0))
	}

	roots, err := BuildTree(chain, TreeOptions{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	flat := FlattenTree(roots)
	if len(flat) != 400 {
		t.Fatalf("flattened %d comments, want 400", len(flat))
	}
	if flat[399].Depth != 399 {
		t.Errorf("last depth = %d, want 399", flat[399].Depth)
	}
}

func TestFlattenTreePreOrder(t *testing.T) {
	a := comment(1, nil, 2)
	b := comment(2, &a, 0)
	c := comment(3, nil, 1)
	d := comment(4, &b, 0)

	roots, err := BuildTree([]models.Comment{a, b, c, d}, TreeOptions{})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	var got []uint
	var depths []int
	for _, f := range FlattenTree(roots) {
		got = append(got, f.ID)
		depths = append(depths, f.Depth)
	}
	if !equalIDs(got, []uint{1, 2, 4, 3}) {
		t.Errorf("order = %v, want [1 2 4 3]", got)
	}
	want := []int{0, 1, 2, 0}
	for i := range want {
		if depths[i] != want[i] {
			t.Errorf("depths = %v, want %v", depths, want)
			break
		}
	}
}
