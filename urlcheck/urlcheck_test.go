package urlcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{
			name: "public https URL",
			url:  "https://example.com/abc123",
		},
		{
			name: "public http URL with port",
			url:  "http://files.example.org:8080/f/xyz",
		},
		{
			name: "URL with surrounding whitespace",
			url:  "  https://files.catbox.moe/q2n6cd.png\n",
		},
		{
			name:    "loopback IP",
			url:     "http://127.0.0.1/x",
			wantErr: true,
		},
		{
			name:    "link-local metadata service",
			url:     "http://169.254.169.254/",
			wantErr: true,
		},
		{
			name:    "private IP",
			url:     "http://10.0.0.5/f",
			wantErr: true,
		},
		{
			name:    "non-http scheme",
			url:     "ftp://host/f",
			wantErr: true,
		},
		{
			name:    "localhost hostname",
			url:     "http://localhost/file",
			wantErr: true,
		},
		{
			name:    "TLD-less hostname",
			url:     "https://fileserver/abc",
			wantErr: true,
		},
		{
			name:    "numeric-only hostname",
			url:     "https://12345.678/abc",
			wantErr: true,
		},
		{
			name:    "empty string",
			url:     "",
			wantErr: true,
		},
		{
			name:    "relative path",
			url:     "/files/abc123",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
