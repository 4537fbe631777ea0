package directory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/player-console/internal/credentials"
	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/upstream/upstreamtest"
)

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	testCreds  = domain.Credentials{Account: "acme", APIKey: "k1"}
)

func newDirectory(t *testing.T, stored bool) (*Directory, *upstreamtest.Server, *notify.Recorder) {
	t.Helper()
	srv := upstreamtest.New(t)
	store, err := credentials.Open(context.Background(), credentials.NewMemoryBackend(nil), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if stored {
		if err := store.Set(context.Background(), testCreds); err != nil {
			t.Fatal(err)
		}
	} else {
		store.Edit(testCreds)
	}
	rec := &notify.Recorder{}
	return New(srv.Client(), store, rec, testLogger), srv, rec
}

func TestLoadMissingCredentialsSkipsNetwork(t *testing.T) {
	d, srv, rec := newDirectory(t, true)

	listing := d.Load(context.Background(), domain.Credentials{Account: "acme"})
	if len(listing.Players) != 0 || len(listing.Teams) != 0 {
		t.Errorf("listing = %+v, want empty", listing)
	}
	if n := len(srv.Calls()); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
	if n := len(rec.All()); n != 0 {
		t.Errorf("notifications = %d, want 0", n)
	}
}

func TestLoadPlayersAndTeams(t *testing.T) {
	d, srv, _ := newDirectory(t, true)
	srv.Handle(http.MethodGet, "/players", http.StatusOK, `[{"id":"p1","name":"Ann","player":"p1","team":"t1"}]`)
	srv.Handle(http.MethodGet, "/teams", http.StatusOK, `{"data":[{"id":"t1","name":"Red"}]}`)

	listing := d.Load(context.Background(), testCreds)
	if len(listing.Players) != 1 || listing.Players[0].Name != "Ann" {
		t.Fatalf("players = %+v", listing.Players)
	}
	if d.TeamName("t1") != "Red" {
		t.Errorf("TeamName(t1) = %q", d.TeamName("t1"))
	}
	if p, ok := d.Find("p1"); !ok || p.TeamID != "t1" {
		t.Errorf("Find(p1) = %+v, %v", p, ok)
	}
}

func TestLoadFailureDomains(t *testing.T) {
	tests := []struct {
		name         string
		playerStatus int
		teamStatus   int
		wantPlayers  int
		wantTeams    int
		wantNotice   string
	}{
		{name: "teams fail", playerStatus: 200, teamStatus: 500, wantPlayers: 1, wantTeams: 0},
		{name: "players unauthorized", playerStatus: 401, teamStatus: 200, wantPlayers: 0, wantTeams: 1, wantNotice: domain.ErrUnauthorized.Error()},
		{name: "players fail", playerStatus: 500, teamStatus: 200, wantPlayers: 0, wantTeams: 1, wantNotice: "Failed to load players: db down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, srv, rec := newDirectory(t, true)
			playerBody := `[{"id":"p1","name":"Ann"}]`
			if tt.playerStatus != 200 {
				playerBody = `{"message":"db down"}`
			}
			srv.Handle(http.MethodGet, "/players", tt.playerStatus, playerBody)
			srv.Handle(http.MethodGet, "/teams", tt.teamStatus, `[{"id":"t1","name":"Red"}]`)

			listing := d.Load(context.Background(), testCreds)
			if len(listing.Players) != tt.wantPlayers {
				t.Errorf("players = %d, want %d", len(listing.Players), tt.wantPlayers)
			}
			if len(listing.Teams) != tt.wantTeams {
				t.Errorf("teams = %d, want %d", len(listing.Teams), tt.wantTeams)
			}

			notes := rec.All()
			if tt.wantNotice == "" {
				if len(notes) != 0 {
					t.Errorf("notifications = %v, want none", notes)
				}
				return
			}
			if len(notes) != 1 || notes[0].Message != tt.wantNotice || notes[0].Kind != notify.KindError {
				t.Errorf("notifications = %v, want one %q", notes, tt.wantNotice)
			}
		})
	}
}

func TestCreatePlayerAlreadyExistsNeverPosts(t *testing.T) {
	d, srv, rec := newDirectory(t, true)
	srv.Handle(http.MethodGet, "/players/p1", http.StatusOK, `{"name":"Ann"}`)

	_, err := d.CreatePlayer(context.Background(), domain.NewPlayer{ID: "p1", Name: "Ann"})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	if n := srv.CallCount(http.MethodPost, "/players"); n != 0 {
		t.Errorf("create POSTs = %d, want 0", n)
	}
	if n := len(rec.All()); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
}

func TestCreatePlayerRequiresStoredCredentials(t *testing.T) {
	d, srv, _ := newDirectory(t, false)

	_, err := d.CreatePlayer(context.Background(), domain.NewPlayer{ID: "p2", Name: "Bo"})
	if !errors.Is(err, domain.ErrCredentialsNotStored) {
		t.Fatalf("err = %v, want ErrCredentialsNotStored", err)
	}
	if n := len(srv.Calls()); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestCreatePlayerProbeFailure(t *testing.T) {
	d, srv, _ := newDirectory(t, true)
	srv.Handle(http.MethodGet, "/players/p2", http.StatusInternalServerError, `{}`)

	_, err := d.CreatePlayer(context.Background(), domain.NewPlayer{ID: "p2", Name: "Bo"})
	if !errors.Is(err, domain.ErrProbeFailed) {
		t.Fatalf("err = %v, want ErrProbeFailed", err)
	}
	if n := srv.CallCount(http.MethodPost, "/players"); n != 0 {
		t.Errorf("create POSTs = %d, want 0", n)
	}
}

func TestCreatePlayerSuccessReloads(t *testing.T) {
	d, srv, rec := newDirectory(t, true)
	srv.Handle(http.MethodPost, "/players", http.StatusCreated, `{"player_id":"srv-p2"}`)
	srv.Handle(http.MethodGet, "/players", http.StatusOK, `[{"id":"srv-p2","name":"Bo","player":"srv-p2"}]`)
	srv.Handle(http.MethodGet, "/teams", http.StatusOK, `[]`)

	p, err := d.CreatePlayer(context.Background(), domain.NewPlayer{ID: "p2", Name: "Bo"})
	if err != nil {
		t.Fatalf("CreatePlayer() error = %v", err)
	}
	if p.PlayerRef != "srv-p2" {
		t.Errorf("PlayerRef = %q, want srv-p2", p.PlayerRef)
	}
	if n := srv.CallCount(http.MethodPost, "/players"); n != 1 {
		t.Errorf("create POSTs = %d, want 1", n)
	}
	if n := srv.CallCount(http.MethodGet, "/players"); n != 1 {
		t.Errorf("reloads = %d, want 1", n)
	}
	if _, ok := d.Find("srv-p2"); !ok {
		t.Error("created player missing after reload")
	}
	notes := rec.All()
	if len(notes) != 1 || notes[0].Kind != notify.KindSuccess {
		t.Errorf("notifications = %v", notes)
	}
}
