package credential

import "time"

// Kind tags the secret union.
type Kind string

const (
	KindDefault  Kind = "Default"
	KindPassword Kind = "Password"
	KindKeyFile  Kind = "KeyFile"
	KindKeyData  Kind = "KeyData"
)

// Secret is the tagged union of connection secrets. Exactly the fields for
// the tagged kind are meaningful:
//
//	Default:  agent or ambient auth, no fields
//	Password: User, Password
//	KeyFile:  User, Path, optional Passphrase
//	KeyData:  User, KeyBytes, optional Passphrase
//
// Byte-backed fields hold the sensitive material; callers that are done with
// a Secret must call Wipe.
type Secret struct {
	Kind       Kind   `json:"kind"`
	User       string `json:"user,omitempty"`
	Password   []byte `json:"password,omitempty"`
	Path       string `json:"path,omitempty"`
	KeyBytes   []byte `json:"key_bytes,omitempty"`
	Passphrase []byte `json:"passphrase,omitempty"`
}

// Wipe overwrites the secret's backing memory. The Secret is unusable
// afterwards.
func (s *Secret) Wipe() {
	zero(s.Password)
	zero(s.KeyBytes)
	zero(s.Passphrase)
	s.Password = nil
	s.KeyBytes = nil
	s.Passphrase = nil
}

// clone deep-copies the byte-backed fields so wiping one copy cannot reach
// into another.
func (s Secret) clone() Secret {
	out := s
	out.Password = cloneBytes(s.Password)
	out.KeyBytes = cloneBytes(s.KeyBytes)
	out.Passphrase = cloneBytes(s.Passphrase)
	return out
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Credential is a full record including its secret.
type Credential struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	Secret      Secret     `json:"secret"`
}

// Wipe releases the credential's secret material.
func (c *Credential) Wipe() { c.Secret.Wipe() }

func (c Credential) clone() Credential {
	out := c
	out.Secret = c.Secret.clone()
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		out.LastUsedAt = &t
	}
	return out
}

// Summary is the secret-free projection returned to listing callers.
type Summary struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	User        string
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}

func (c *Credential) summary() Summary {
	s := Summary{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Kind:        c.Secret.Kind,
		User:        c.Secret.User,
		CreatedAt:   c.CreatedAt,
	}
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		s.LastUsedAt = &t
	}
	return s
}
