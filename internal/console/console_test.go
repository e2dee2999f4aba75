// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package console

import (
	"testing"

	"github.com/hyped/podctl/internal/statemachine"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantArgs []string
		wantErr  bool
	}{
		{"launch", "launch", []string{}, false},
		{`stop "emergency stop"`, "stop", []string{"emergency stop"}, false},
		{"", "", nil, true},
		{"   ", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := Parse(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cmd.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", cmd.Name, tt.wantName)
			}
			if len(cmd.Args) != len(tt.wantArgs) {
				t.Errorf("Args = %v, want %v", cmd.Args, tt.wantArgs)
			}
		})
	}
}

func TestCommand_ToEvent(t *testing.T) {
	cmd, err := Parse("launch")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	event, err := cmd.ToEvent()
	if err != nil {
		t.Fatalf("ToEvent: %v", err)
	}
	if event != statemachine.OnStart {
		t.Errorf("event = %v, want OnStart", event)
	}

	unknown, _ := Parse("frobnicate")
	if _, err := unknown.ToEvent(); err == nil {
		t.Error("expected an error for an unknown command")
	}
}
