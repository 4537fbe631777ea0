package history

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/upstream/upstreamtest"
)

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	testCreds  = domain.Credentials{Account: "acme", APIKey: "k1"}
)

func seed(srv *upstreamtest.Server) {
	srv.Handle(http.MethodGet, "/players/p1/missions", http.StatusOK,
		`{"missions":{"completed":[{"missionId":"m1","name":"Login","count":2,"completedOn":"2024-02-01T00:00:00Z"}]}}`)
	srv.Handle(http.MethodGet, "/players/p1/achievements", http.StatusOK,
		`{"achievements":{"completed":[{"id":"a1","name":"Early bird"}]}}`)
	srv.Handle(http.MethodGet, "/players/p1/prizes", http.StatusOK,
		`{"data":[{"prizeId":"z1","name":"Mug","firstCompletedOn":"2024-01-01T00:00:00Z"}]}`)
	srv.Handle(http.MethodGet, "/quizzes", http.StatusOK,
		`[{"id":"q1","title":"Basics"},{"id":"q2","title":"Advanced"},{"id":"q3","title":"Untouched"}]`)
	srv.Handle(http.MethodGet, "/quizzes/q1/result/p1", http.StatusOK, `{"actions":2,"completedOn":"2024-03-01T00:00:00Z"}`)
	srv.Handle(http.MethodGet, "/quizzes/q2/result/p1", http.StatusOK, `{"actions":0}`)
	// q3 has no result: the fake answers 404
}

func TestLoadMergesAllResources(t *testing.T) {
	srv := upstreamtest.New(t)
	seed(srv)
	rec := &notify.Recorder{}

	h := NewAggregator(srv.Client(), rec, testLogger).Load(context.Background(), testCreds, "p1")

	if len(h.Missions) != 1 || h.Missions[0].ID != "m1" || h.Missions[0].Count != 2 {
		t.Errorf("missions = %+v", h.Missions)
	}
	if len(h.Achievements) != 1 || h.Achievements[0].Count != 1 || h.Achievements[0].LastAtText() != domain.MissingDate {
		t.Errorf("achievements = %+v", h.Achievements)
	}
	if len(h.Prizes) != 1 || h.Prizes[0].ID != "z1" || h.Prizes[0].LastAt == nil {
		t.Errorf("prizes = %+v", h.Prizes)
	}
	if len(h.Quizzes) != 1 || h.Quizzes[0].ID != "q1" || h.Quizzes[0].Name != "Basics" || h.Quizzes[0].Count != 2 {
		t.Errorf("quizzes = %+v, want only q1", h.Quizzes)
	}
	if len(h.Errors) != 0 || len(rec.All()) != 0 {
		t.Errorf("errors = %v, notifications = %v", h.Errors, rec.All())
	}
}

func TestLoadQuizProtocolIsNPlusOne(t *testing.T) {
	srv := upstreamtest.New(t)
	seed(srv)

	NewAggregator(srv.Client(), notify.Discard, testLogger).Load(context.Background(), testCreds, "p1")

	listIndex := -1
	results := 0
	for i, c := range srv.Calls() {
		switch {
		case c.Path == "/quizzes":
			listIndex = i
		case strings.HasPrefix(c.Path, "/quizzes/") && strings.HasSuffix(c.Path, "/result/p1"):
			results++
			if listIndex == -1 {
				t.Errorf("result %s requested before the quiz list", c.Path)
			}
		}
	}
	if results != 3 {
		t.Errorf("result calls = %d, want 3", results)
	}
}

func TestLoadReturnsPartialResults(t *testing.T) {
	srv := upstreamtest.New(t)
	seed(srv)
	srv.Handle(http.MethodGet, "/players/p1/prizes", http.StatusInternalServerError, `{"message":"prizes offline"}`)
	rec := &notify.Recorder{}

	h := NewAggregator(srv.Client(), rec, testLogger).Load(context.Background(), testCreds, "p1")

	if len(h.Missions) != 1 || len(h.Achievements) != 1 || len(h.Quizzes) != 1 {
		t.Errorf("healthy resources missing: %+v", h)
	}
	if h.Prizes == nil || len(h.Prizes) != 0 {
		t.Errorf("prizes = %#v, want empty", h.Prizes)
	}
	if h.Errors[domain.ResourcePrizes] != "prizes offline" {
		t.Errorf("errors = %v", h.Errors)
	}
	notes := rec.All()
	if len(notes) != 1 || notes[0].Message != "Failed to load prizes: prizes offline" {
		t.Errorf("notifications = %v", notes)
	}
}

func TestLoadQuizResultFailureKeepsOtherQuizzes(t *testing.T) {
	srv := upstreamtest.New(t)
	seed(srv)
	srv.Handle(http.MethodGet, "/quizzes/q2/result/p1", http.StatusBadGateway, `{}`)
	rec := &notify.Recorder{}

	h := NewAggregator(srv.Client(), rec, testLogger).Load(context.Background(), testCreds, "p1")

	if len(h.Quizzes) != 1 || h.Quizzes[0].ID != "q1" {
		t.Errorf("quizzes = %+v", h.Quizzes)
	}
	if _, failed := h.Errors[domain.ResourceQuizzes]; !failed {
		t.Errorf("errors = %v, want quizzes entry", h.Errors)
	}
	if n := len(rec.All()); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
}

func TestLoadCancelledIsSilent(t *testing.T) {
	srv := upstreamtest.New(t)
	seed(srv)
	rec := &notify.Recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewAggregator(srv.Client(), rec, testLogger).Load(ctx, testCreds, "p1")

	if n := len(rec.All()); n != 0 {
		t.Errorf("notifications = %d, want 0", n)
	}
}
