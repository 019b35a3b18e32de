package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"threadline/internal/models"
	"threadline/internal/services"
	"threadline/internal/testsupport"
)

type cliEnv struct {
	store   *testsupport.MemoryStore
	svc     *services.CommentService
	article *models.Article
	closed  int
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	store := testsupport.NewMemoryStore()
	env := &cliEnv{store: store, article: store.AddArticle("Threads", true, "")}
	env.svc = services.NewCommentService(services.Deps{
		Comments:      store,
		Notifications: store,
		Users:         store,
		Commentables:  store,
	}, services.Options{})
	return env
}

func (e *cliEnv) open(context.Context) (threadService, func(), error) {
	return e.svc, func() { e.closed++ }, nil
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(e.open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) comment(t *testing.T, user models.User, body string, parent *models.Comment) models.Comment {
	t.Helper()
	in := services.CreateCommentInput{
		UserID:          user.ID,
		CommentableType: string(models.CommentableArticle),
		CommentableID:   e.article.ID,
		BodyMarkdown:    body,
	}
	if parent != nil {
		in.ParentID = &parent.ID
	}
	c, err := e.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c
}

func TestThreadCommand(t *testing.T) {
	env := newCLIEnv(t)
	ann := env.store.AddUser("ann")
	bob := env.store.AddUser("bob")
	root := env.comment(t, ann, "first", nil)
	reply := env.comment(t, bob, "second", &root)
	buried := env.comment(t, bob, "third", nil)
	ctx := context.Background()
	if err := env.svc.SetScore(ctx, reply.ID, -3); err != nil {
		t.Fatalf("SetScore: %v", err)
	}
	if err := env.svc.SetScore(ctx, buried.ID, -1); err != nil {
		t.Fatalf("SetScore: %v", err)
	}

	articleID := strconv.FormatUint(uint64(env.article.ID), 10)
	out, err := env.run(t, "thread", "articles", articleID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "[") || !strings.HasPrefix(lines[1], "  [") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(lines[1], "bob (score -3): second") {
		t.Errorf("reply line = %q", lines[1])
	}

	out, err = env.run(t, "thread", "articles", articleID, "--min-score", "0")
	if err != nil {
		t.Fatalf("thread --min-score: %v", err)
	}
	if strings.Contains(out, "third") {
		t.Errorf("low scoring root not hidden:\n%s", out)
	}
	if !strings.Contains(out, "second") {
		t.Errorf("reply under a kept root was hidden:\n%s", out)
	}
	if env.closed != 2 {
		t.Errorf("close called %d times, want 2", env.closed)
	}
}

func TestThreadCommandRejectsBadArgs(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "thread", "videos", "1"); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := env.run(t, "thread", "articles", "zero"); err == nil {
		t.Error("expected error for bad id")
	}
	if _, err := env.run(t, "thread", "articles"); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestRefreshCommand(t *testing.T) {
	env := newCLIEnv(t)
	ann := env.store.AddUser("ann")
	bob := env.store.AddUser("bob")
	root := env.comment(t, ann, "first", nil)
	env.comment(t, bob, "second", &root)

	out, err := env.run(t, "refresh", "9999")
	if err == nil {
		t.Fatalf("refresh of a missing comment succeeded:\n%s", out)
	}

	out, err = env.run(t, "refresh", strconv.FormatUint(uint64(root.ID), 10))
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !strings.Contains(out, "descendants: 1") || !strings.Contains(out, "updated: 0") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestMigrateCommandOpensAndCloses(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema up to date") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if env.closed != 1 {
		t.Errorf("closed = %d, want 1", env.closed)
	}
}
