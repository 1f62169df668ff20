package ssh

// SSH message numbers per RFC 4250 (plus the curve25519 ECDH pair, which
// reuses the generic kex message slots).
const (
	msgDisconnect     = 1
	msgIgnore         = 2
	msgUnimplemented  = 3
	msgDebug          = 4
	msgServiceRequest = 5
	msgServiceAccept  = 6
	msgKexInit        = 20
	msgNewKeys        = 21
	msgKexECDHInit    = 30
	msgKexECDHReply   = 31

	msgUserauthRequest = 50
	msgUserauthFailure = 51
	msgUserauthSuccess = 52
	msgUserauthBanner  = 53
	msgUserauthPkOK    = 60

	msgChannelOpen             = 90
	msgChannelOpenConfirmation = 91
	msgChannelOpenFailure      = 92
	msgChannelWindowAdjust     = 93
	msgChannelData             = 94
	msgChannelExtendedData     = 95
	msgChannelEOF              = 96
	msgChannelClose            = 97
	msgChannelRequest          = 98
	msgChannelSuccess          = 99
	msgChannelFailure          = 100
)

func msgName(t uint8) string {
	switch t {
	case msgDisconnect:
		return "DISCONNECT"
	case msgIgnore:
		return "IGNORE"
	case msgUnimplemented:
		return "UNIMPLEMENTED"
	case msgDebug:
		return "DEBUG"
	case msgServiceRequest:
		return "SERVICE_REQUEST"
	case msgServiceAccept:
		return "SERVICE_ACCEPT"
	case msgKexInit:
		return "KEXINIT"
	case msgNewKeys:
		return "NEWKEYS"
	case msgKexECDHInit:
		return "KEX_ECDH_INIT"
	case msgKexECDHReply:
		return "KEX_ECDH_REPLY"
	case msgUserauthRequest:
		return "USERAUTH_REQUEST"
	case msgUserauthFailure:
		return "USERAUTH_FAILURE"
	case msgUserauthSuccess:
		return "USERAUTH_SUCCESS"
	case msgUserauthBanner:
		return "USERAUTH_BANNER"
	case msgUserauthPkOK:
		return "USERAUTH_PK_OK"
	case msgChannelOpen:
		return "CHANNEL_OPEN"
	case msgChannelOpenConfirmation:
		return "CHANNEL_OPEN_CONFIRMATION"
	case msgChannelOpenFailure:
		return "CHANNEL_OPEN_FAILURE"
	case msgChannelWindowAdjust:
		return "CHANNEL_WINDOW_ADJUST"
	case msgChannelData:
		return "CHANNEL_DATA"
	case msgChannelExtendedData:
		return "CHANNEL_EXTENDED_DATA"
	case msgChannelEOF:
		return "CHANNEL_EOF"
	case msgChannelClose:
		return "CHANNEL_CLOSE"
	case msgChannelRequest:
		return "CHANNEL_REQUEST"
	case msgChannelSuccess:
		return "CHANNEL_SUCCESS"
	case msgChannelFailure:
		return "CHANNEL_FAILURE"
	default:
		return "UNKNOWN"
	}
}
