package ecowitt

// LiveData is the decoded payload of /get_livedata_info. Every section is
// optional; firmware versions differ on which ones they emit.
type LiveData struct {
	CommonList []LiveDataItem `json:"common_list"`
	PiezoRain  []LiveDataItem `json:"piezoRain"`
	WH25       []WH25Item     `json:"wh25"`
	Soil       []SoilChannel  `json:"ch_soil"`
	Aisle      []AisleChannel `json:"ch_aisle"`
}

// LiveDataItem is one id/val pair from a flat reading list. The rain section
// piggybacks WS90 station metadata on its items; those fields are empty
// everywhere else.
type LiveDataItem struct {
	ID          string `json:"id"`
	Val         string `json:"val"`
	Battery     string `json:"battery,omitempty"`
	Voltage     string `json:"voltage,omitempty"`
	WS90CapVolt string `json:"ws90cap_volt,omitempty"`
	WS90Version string `json:"ws90_ver,omitempty"`
}

// SoilChannel is one entry of the ch_soil section (WH51 soil moisture).
type SoilChannel struct {
	Channel  string `json:"channel"`
	Name     string `json:"name"`
	Battery  string `json:"battery"`
	Humidity string `json:"humidity"`
}

// AisleChannel is one entry of the ch_aisle section (WH31 temp/humidity).
type AisleChannel struct {
	Channel  string `json:"channel"`
	Name     string `json:"name"`
	Battery  string `json:"battery"`
	Temp     string `json:"temp"`
	Unit     string `json:"unit"`
	Humidity string `json:"humidity"`
}

// WH25Item is the indoor climate block (temperature/humidity/pressure).
type WH25Item struct {
	InTemp string `json:"intemp"`
	Unit   string `json:"unit"`
	InHumi string `json:"inhumi"`
	Abs    string `json:"abs"`
	Rel    string `json:"rel"`
}

// RawMappingEntry is one row of /get_sensors_info. ID is the hardware id the
// gateway assigned to the paired unit, or a sentinel when the slot is empty.
type RawMappingEntry struct {
	ID      string `json:"id"`
	Img     string `json:"img"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Channel string `json:"channel"`
	Batt    string `json:"batt"`
	RSSI    string `json:"rssi"`
	Signal  string `json:"signal"`
	IDST    string `json:"idst"`
}

// VersionInfo is the decoded payload of /get_version.
type VersionInfo struct {
	Version     string `json:"version"`
	StationType string `json:"stationtype"`
}
