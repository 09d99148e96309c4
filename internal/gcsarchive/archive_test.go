package gcsarchive

import "testing"

func TestSplitURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "bucket and object",
			uri:        "gs://mail-bodies/2024/01/msg-123.txt",
			wantBucket: "mail-bodies",
			wantObject: "2024/01/msg-123.txt",
		},
		{name: "missing scheme", uri: "mail-bodies/msg.txt", wantErr: true},
		{name: "bucket only", uri: "gs://mail-bodies", wantErr: true},
		{name: "empty object", uri: "gs://mail-bodies/", wantErr: true},
		{name: "empty string", uri: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := splitURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("splitURI() = %q, %q, want %q, %q", bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}
