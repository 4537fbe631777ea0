package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/upstream/upstreamtest"
)

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	testCreds  = domain.Credentials{Account: "acme", APIKey: "k1"}
)

func TestLoadSplicesTeamName(t *testing.T) {
	srv := upstreamtest.New(t)
	srv.Handle(http.MethodGet, "/players/p1", http.StatusOK, `{"name":"Ann","team":"t1","points":40,"level":{"name":"Gold"}}`)
	srv.Handle(http.MethodGet, "/teams/t1", http.StatusOK, `{"id":"t1","name":"Red"}`)

	p, err := NewAggregator(srv.Client(), testLogger).Load(context.Background(), testCreds, "p1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.TeamName != "Red" || p.Points != 40 || p.Level.Name != "Gold" || p.PlayerRef != "p1" {
		t.Errorf("profile = %+v", p)
	}
}

func TestLoadSwallowsTeamFailure(t *testing.T) {
	srv := upstreamtest.New(t)
	srv.Handle(http.MethodGet, "/players/p1", http.StatusOK, `{"name":"Ann","team":"t1"}`)
	srv.Handle(http.MethodGet, "/teams/t1", http.StatusInternalServerError, `{}`)

	p, err := NewAggregator(srv.Client(), testLogger).Load(context.Background(), testCreds, "p1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.TeamName != "" || p.Name != "Ann" {
		t.Errorf("profile = %+v", p)
	}
}

func TestLoadWithoutTeamMakesOneCall(t *testing.T) {
	srv := upstreamtest.New(t)
	srv.Handle(http.MethodGet, "/players/p1", http.StatusOK, `{}`)

	p, err := NewAggregator(srv.Client(), testLogger).Load(context.Background(), testCreds, "p1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := domain.PlayerProfile{PlayerRef: "p1", Level: domain.Level{Name: domain.DefaultLevelName}}
	if p != want {
		t.Errorf("profile = %+v, want %+v", p, want)
	}
	if n := len(srv.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestLoadPropagatesAuthFailure(t *testing.T) {
	srv := upstreamtest.New(t)
	srv.Handle(http.MethodGet, "/players/p1", http.StatusUnauthorized, `{}`)

	_, err := NewAggregator(srv.Client(), testLogger).Load(context.Background(), testCreds, "p1")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}
