package ssh

import "strings"

// Offered algorithm lists, in preference order. Any future addition extends
// these and the switch sites that key off the names.
const (
	kexCurve25519SHA256       = "curve25519-sha256"
	kexCurve25519SHA256LibSSH = "curve25519-sha256@libssh.org"

	hostKeyEd25519 = "ssh-ed25519"
	hostKeyRSA256  = "rsa-sha2-256"
	hostKeyRSA     = "ssh-rsa"

	cipherAES256CTR = "aes256-ctr"
	cipherAES128CTR = "aes128-ctr"

	macHmacSHA256 = "hmac-sha2-256"
	macHmacSHA1   = "hmac-sha1"

	compressionNone = "none"
)

var (
	kexAlgorithms     = []string{kexCurve25519SHA256, kexCurve25519SHA256LibSSH}
	hostKeyAlgorithms = []string{hostKeyEd25519, hostKeyRSA256, hostKeyRSA}
	cipherAlgorithms  = []string{cipherAES256CTR, cipherAES128CTR}
	macAlgorithms     = []string{macHmacSHA256, macHmacSHA1}
	compressionAlgos  = []string{compressionNone}
)

// negotiated holds the outcome of KEXINIT negotiation.
type negotiated struct {
	kex       string
	hostKey   string
	cipherC2S string
	cipherS2C string
	macC2S    string
	macS2C    string
}

// pickFirstCommon returns the first locally-offered name that also appears
// in the server's comma-separated list.
func pickFirstCommon(local []string, remote string, slot string) (string, error) {
	serverList := strings.Split(remote, ",")
	for _, ours := range local {
		for _, theirs := range serverList {
			if ours == theirs {
				return ours, nil
			}
		}
	}
	return "", &NoCommonAlgorithmError{Slot: slot}
}

func keyLenForCipher(name string) int {
	if name == cipherAES256CTR {
		return 32
	}
	return 16
}

func keyLenForMac(name string) int {
	if name == macHmacSHA256 {
		return 32
	}
	return 20
}
