package constants

const (
	AppName      = "quantum-swap-agent"
	KeystoreFile = "keystore.json"
	ConfigFile   = "config"

	FilePerm      = 0o600
	DirectoryPerm = 0o700

	// NativeAddr is the sentinel the aggregation API uses for the chain's native coin.
	NativeAddr     = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
	NativeDecimals = 18

	// AAD const for the keystore envelope
	AADConstant = "quantum-swap-agent:keystore:v1"

	// BalanceErrorMarker replaces a balance that could not be read.
	BalanceErrorMarker = "Error"

	DisplayFractionDigits = 6
)
