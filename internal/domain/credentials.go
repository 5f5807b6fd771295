package domain

import (
	"bytes"
	"time"
)

// CredentialsMainFile marks a bundle as paired. A bundle without it needs a
// fresh pairing code before the session can open.
const CredentialsMainFile = "creds.json"

// Credentials is the opaque authentication state of one identity, keyed by
// file name. The transport owns the content. In an update, a nil value
// removes the file.
type Credentials struct {
	Files map[string][]byte
}

func NewCredentials() Credentials {
	return Credentials{Files: map[string][]byte{}}
}

func (c Credentials) Empty() bool {
	data, ok := c.Files[CredentialsMainFile]
	return !ok || data == nil
}

func (c Credentials) Clone() Credentials {
	out := NewCredentials()
	for name, data := range c.Files {
		out.Files[name] = bytes.Clone(data)
	}
	return out
}

// Merge overlays the files of update onto c and returns the result. Files
// set to nil in update are dropped.
func (c Credentials) Merge(update Credentials) Credentials {
	out := c.Clone()
	for name, data := range update.Files {
		if data == nil {
			delete(out.Files, name)
			continue
		}
		out.Files[name] = bytes.Clone(data)
	}
	return out
}

type CredentialInfo struct {
	Identity  Identity
	Paired    bool
	Files     int
	UpdatedAt time.Time
}
