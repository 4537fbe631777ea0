package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIErrorUnwrap(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: 401, want: ErrUnauthorized},
		{name: "not found", status: 404, want: ErrNotFound},
		{name: "server error", status: 500, want: ErrTransportFailure},
		{name: "conflict", status: 409, want: ErrTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("loading: %w", &APIError{Status: tt.status})
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "server message", err: &APIError{Status: 400, Message: "Out of stock"}, want: "Out of stock"},
		{name: "wrapped server message", err: fmt.Errorf("claiming: %w", &APIError{Status: 500, Message: "boom"}), want: "boom"},
		{name: "bare status", err: &APIError{Status: 502}, want: "request failed with status 502"},
		{name: "bare unauthorized", err: &APIError{Status: 401}, want: ErrUnauthorized.Error()},
		{name: "local", err: ErrIncompleteAnswers, want: ErrIncompleteAnswers.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHistoryRowDates(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
	row := HistoryRow{ID: "m1", LastAt: &at}

	if got := row.FirstAtText(); got != MissingDate {
		t.Errorf("FirstAtText() = %q, want %q", got, MissingDate)
	}
	if got := row.LastAtText(); got != "2024-03-09 14:30" {
		t.Errorf("LastAtText() = %q", got)
	}
}

func TestMergeProgressKeepsIdentity(t *testing.T) {
	p := PlayerProfile{PlayerRef: "p1", Name: "Ann", TeamName: "Red", Points: 1}
	p.MergeProgress(PlayerProfile{Name: "changed", TeamName: "", Points: 50, Credits: 7, Level: Level{Name: "Gold"}})

	if p.Name != "Ann" || p.TeamName != "Red" {
		t.Errorf("identity fields overwritten: %+v", p)
	}
	if p.Points != 50 || p.Credits != 7 || p.Level.Name != "Gold" {
		t.Errorf("progress fields not merged: %+v", p)
	}
}
