// Package transfer copies files to and from a remote host with an external
// secure-copy tool, trusting an unknown host key on first use.
package transfer

import "regexp"

// HostKeyFingerprint identifies a host key as printed by the copy tool, e.g.
// "ssh-ed25519 255 SHA256:...".
type HostKeyFingerprint string

var fingerprintPattern = regexp.MustCompile(`ssh-[\w-]+ \d+ SHA256:[A-Za-z0-9+/=]+`)

// ExtractFingerprint returns the first fingerprint found in output.
func ExtractFingerprint(output string) (HostKeyFingerprint, bool) {
	match := fingerprintPattern.FindString(output)
	if match == "" {
		return "", false
	}
	return HostKeyFingerprint(match), true
}
