package restic

import "testing"

func TestExtractVersion(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   string
	}{
		{
			name:   "plain",
			output: "restic 0.16.4 compiled with go1.21.6 on linux/amd64\n",
			want:   "0.16.4",
		},
		{
			name:   "prerelease",
			output: "restic 0.17.0-rc1 compiled with go1.22.1 on linux/arm64\n",
			want:   "0.17.0-rc1",
		},
		{
			name:   "noise before version line",
			output: "warning: something\nrestic 0.15.2 compiled with go1.20 on linux/amd64\n",
			want:   "0.15.2",
		},
		{
			name:   "no version",
			output: "not the tool you expected\n",
			want:   "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractVersion(tc.output)
			if err != nil {
				t.Fatalf("ExtractVersion: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ExtractVersion = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsNotRepository(t *testing.T) {
	if !isNotRepository("Fatal: unable to open repository at b2:bucket:path") {
		t.Fatal("expected open-repository failure to be recognized")
	}
	if !isNotRepository("Is there a repository at the following location?\n... does not look like a restic repository") {
		t.Fatal("expected missing-repository message to be recognized")
	}
	if isNotRepository("Fatal: wrong password or no key found") {
		t.Fatal("wrong password must not trigger repository init")
	}
}
