package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", topics.State("water_temperature"), "graylogic/state/biocat/water_temperature"},
		{"command", topics.Command("absence_mode"), "graylogic/command/biocat/absence_mode"},
		{"ack", topics.Ack("open_valve"), "graylogic/ack/biocat/open_valve"},
		{"health", topics.Health(), "graylogic/health/biocat"},
		{"system status", topics.SystemStatus(), "graylogic/system/status"},
		{"all commands", topics.AllCommands(), "graylogic/command/biocat/+"},
		{"all states", topics.AllStates(), "graylogic/state/biocat/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestEntityFromCommandTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"graylogic/command/biocat/absence_mode", "absence_mode"},
		{"graylogic/command/biocat/open_valve", "open_valve"},
		{"graylogic/command/biocat/", ""},
		{"graylogic/command/biocat/a/b", ""},
		{"graylogic/state/biocat/absence_mode", ""},
		{"nonsense", ""},
	}

	for _, tt := range tests {
		if got := EntityFromCommandTopic(tt.topic); got != tt.want {
			t.Errorf("EntityFromCommandTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}
