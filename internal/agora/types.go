package agora

// acquireRequest reserves a cloud recording resource for a channel.
type acquireRequest struct {
	Cname         string               `json:"cname"`
	UID           string               `json:"uid"`
	ClientRequest acquireClientRequest `json:"clientRequest"`
}

type acquireClientRequest struct {
	ResourceExpiredHour int `json:"resourceExpiredHour"`
}

type acquireResponse struct {
	ResourceID string `json:"resourceId"`
}

// TranscodingConfig controls the composite layout of mixed recordings.
type TranscodingConfig struct {
	Height           int    `json:"height"`
	Width            int    `json:"width"`
	Bitrate          int    `json:"bitrate"`
	FPS              int    `json:"fps"`
	MixedVideoLayout int    `json:"mixedVideoLayout"`
	BackgroundColor  string `json:"backgroundColor"`
}

// RecordingConfig is the provider-side recording configuration.
type RecordingConfig struct {
	ChannelType       int               `json:"channelType"`
	StreamTypes       int               `json:"streamTypes"`
	MaxIdleTime       int               `json:"maxIdleTime"`
	TranscodingConfig TranscodingConfig `json:"transcodingConfig"`
}

// ExtensionServiceConfig tells the provider where to push recorded files.
type ExtensionServiceConfig struct {
	ErrorHandlePolicy string             `json:"errorHandlePolicy,omitempty"`
	ExtensionServices []ExtensionService `json:"extensionServices"`
}

// ExtensionService names the destination callback address for file delivery.
type ExtensionService struct {
	ServiceName  string `json:"serviceName"`
	CallbackAddr string `json:"callbackAddr"`
}

// StartRequest issues the provider's start call for an acquired resource.
type StartRequest struct {
	Cname         string             `json:"cname"`
	UID           string             `json:"uid"`
	ClientRequest StartClientRequest `json:"clientRequest"`
}

// StartClientRequest carries the recorder credential, the recording
// configuration and the destination callback for file delivery.
type StartClientRequest struct {
	Token                  string                  `json:"token"`
	RecordingConfig        RecordingConfig         `json:"recordingConfig"`
	ExtensionServiceConfig *ExtensionServiceConfig `json:"extensionServiceConfig,omitempty"`
}

type startResponse struct {
	ResourceID string `json:"resourceId"`
	SID        string `json:"sid"`
}

type stopRequest struct {
	Cname         string            `json:"cname"`
	UID           string            `json:"uid"`
	ClientRequest stopClientRequest `json:"clientRequest"`
}

type stopClientRequest struct {
	AsyncStop bool `json:"async_stop"`
}

// ServerFile is one recorded file as reported by the provider itself.
type ServerFile struct {
	FileName       string `json:"fileName"`
	TrackType      string `json:"trackType"`
	UID            string `json:"uid"`
	MixedAllUser   bool   `json:"mixedAllUser"`
	IsPlayable     bool   `json:"isPlayable"`
	SliceStartTime int64  `json:"sliceStartTime"`
}

// ServerResponse is the provider's own view of a recording session.
type ServerResponse struct {
	Status          int          `json:"status"`
	FileList        []ServerFile `json:"fileList"`
	FileListMode    string       `json:"fileListMode"`
	UploadingStatus string       `json:"uploadingStatus"`
}

type stopResponse struct {
	ResourceID     string         `json:"resourceId"`
	SID            string         `json:"sid"`
	ServerResponse ServerResponse `json:"serverResponse"`
}

type queryResponse struct {
	ResourceID     string         `json:"resourceId"`
	SID            string         `json:"sid"`
	ServerResponse ServerResponse `json:"serverResponse"`
}

type updateLayoutRequest struct {
	Cname         string              `json:"cname"`
	UID           string              `json:"uid"`
	ClientRequest layoutClientRequest `json:"clientRequest"`
}

type layoutClientRequest struct {
	MixedVideoLayout int    `json:"mixedVideoLayout"`
	BackgroundColor  string `json:"backgroundColor"`
}

// errorResponse is the provider's rejection body. Depending on the endpoint
// the text field is "reason" or "message".
type errorResponse struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (e errorResponse) text() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Message
}
