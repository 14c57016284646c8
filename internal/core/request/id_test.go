package request

import "testing"

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		serial int
		want   string
	}{
		{
			name:   "first serial",
			prefix: "ReReco-Run1-DatasetX-proc",
			serial: 1,
			want:   "ReReco-Run1-DatasetX-proc-00001",
		},
		{
			name:   "serial after two existing requests",
			prefix: "ReReco-Run1-DatasetX-proc",
			serial: 3,
			want:   "ReReco-Run1-DatasetX-proc-00003",
		},
		{
			name:   "serial beyond the padding width",
			prefix: "ReReco-Run1-DatasetX-proc",
			serial: 123456,
			want:   "ReReco-Run1-DatasetX-proc-123456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateID(tt.prefix, tt.serial)
			if got != tt.want {
				t.Errorf("GenerateID(%q, %d) = %q, want %q", tt.prefix, tt.serial, got, tt.want)
			}
		})
	}
}

func TestIDPrefix(t *testing.T) {
	got := IDPrefix("Run2023A", "DatasetX", "reproc-v1")
	want := "ReReco-Run2023A-DatasetX-reproc-v1"
	if got != want {
		t.Errorf("IDPrefix() = %q, want %q", got, want)
	}
}

func TestParseSerial(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want int
	}{
		{name: "padded serial", id: "ReReco-Run1-DatasetX-proc-00002", want: 2},
		{name: "wide serial", id: "ReReco-Run1-DatasetX-proc-123456", want: 123456},
		{name: "no numeric suffix", id: "ReReco-Run1-DatasetX-proc", want: -1},
		{name: "no separator", id: "garbage", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseSerial(tt.id); got != tt.want {
				t.Errorf("ParseSerial(%q) = %d, want %d", tt.id, got, tt.want)
			}
		})
	}
}
