package signaling

// Config carries the XMPP-facing options the Focus Registry needs to open a
// ChatRoomAdapter for a newly created conference (spec.md §6 "externally
// supplied: roomName, config snapshot"). It holds no adapter state itself.
type Config struct {
	// Domain is the XMPP domain the focus connects to (e.g. "meet.example.com").
	Domain string `yaml:"domain"`
	// MucDomain is the subdomain hosting conference rooms (e.g. "conference.meet.example.com").
	MucDomain string `yaml:"mucDomain"`
	// FocusNickname is the MUC nickname the focus occupant joins under.
	FocusNickname string `yaml:"focusNickname"`
	// DisableCertificateVerification should only ever be true in local/dev setups.
	DisableCertificateVerification bool `yaml:"disableCertificateVerification"`
}
