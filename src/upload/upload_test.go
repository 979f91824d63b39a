package upload

import "testing"

func TestParseDestination(t *testing.T) {
	cases := []struct {
		raw     string
		bucket  string
		prefix  string
		wantErr bool
	}{
		{raw: "b2://my-bucket/config-backups", bucket: "my-bucket", prefix: "config-backups"},
		{raw: "b2://my-bucket", bucket: "my-bucket", prefix: ""},
		{raw: "b2://my-bucket/deep/prefix/", bucket: "my-bucket", prefix: "deep/prefix"},
		{raw: "", wantErr: true},
		{raw: "my-bucket/prefix", wantErr: true},
		{raw: "s3://bucket/prefix", wantErr: true},
		{raw: "b2://", wantErr: true},
	}
	for _, tc := range cases {
		d, err := ParseDestination(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDestination(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDestination(%q): %v", tc.raw, err)
			continue
		}
		if d.Bucket != tc.bucket || d.Prefix != tc.prefix {
			t.Errorf("ParseDestination(%q) = %#v", tc.raw, d)
		}
	}
}

func TestRemoteName(t *testing.T) {
	d := Destination{Scheme: "b2", Bucket: "bkt", Prefix: "cfg"}
	if got := d.RemoteName("/tmp/bundle.tar.gz.age"); got != "cfg/bundle.tar.gz.age" {
		t.Fatalf("RemoteName = %q", got)
	}
	d.Prefix = ""
	if got := d.RemoteName("/tmp/bundle.tar.gz.age"); got != "bundle.tar.gz.age" {
		t.Fatalf("RemoteName without prefix = %q", got)
	}
}
