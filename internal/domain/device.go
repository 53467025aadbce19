package domain

// DeviceInfo is the static part of the instance info payload.
type DeviceInfo struct {
	PlatformType   string
	PlatformName   string
	AgentName      string
	Lang           string
	Country        string
	TimezoneOffset int
	TimezoneName   string
}
