// Package akool provides an HTTP client for the Akool face-swap and
// talking-photo video APIs.
package akool

// codeOK is the business code Akool returns on success alongside HTTP 200.
const codeOK = 1000

// Talking-photo video_status values as documented by the provider.
const (
	videoStatusQueueing   = 1
	videoStatusProcessing = 2
	videoStatusCompleted  = 3
	videoStatusFailed     = 4
)

// tokenRequest is the body for the getToken endpoint.
type tokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// tokenResponse is the response from the getToken endpoint.
type tokenResponse struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg,omitempty"`
	Token string `json:"token,omitempty"`
}

// detectRequest is the body for the face-detect endpoint.
type detectRequest struct {
	ImageURL string `json:"image_url"`
}

// detectResponse is the response from the face-detect endpoint.
type detectResponse struct {
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMsg     string `json:"error_msg,omitempty"`
	LandmarksStr string `json:"landmarks_str,omitempty"`
}

// swapImage is one image entry in a face-swap request.
type swapImage struct {
	Path string `json:"path"`
	Opts string `json:"opts"`
}

// faceSwapRequest is the body for the high-quality face-swap endpoint.
// TargetImage is the base template being modified; SourceImage carries the
// replacement face.
type faceSwapRequest struct {
	TargetImage []swapImage `json:"targetImage"`
	SourceImage []swapImage `json:"sourceImage"`
	FaceEnhance int         `json:"face_enhance"`
	ModifyImage string      `json:"modifyImage"`
}

// faceSwapResponse is the response from the face-swap submit endpoint. URL is
// set when the swap completed synchronously; otherwise TaskID must be polled.
type faceSwapResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data struct {
		URL    string `json:"url,omitempty"`
		JobID  string `json:"job_id,omitempty"`
		TaskID string `json:"_id,omitempty"`
	} `json:"data"`
}

// faceSwapStatusResponse is the response from the face-swap status endpoint.
type faceSwapStatusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data struct {
		Status    string `json:"status,omitempty"`
		URL       string `json:"url,omitempty"`
		ResultURL string `json:"result_url,omitempty"`
		ErrorMsg  string `json:"error_msg,omitempty"`
	} `json:"data"`
}

// talkingPhotoRequest is the body for the create-by-talking-photo endpoint.
type talkingPhotoRequest struct {
	TalkingPhotoURL string `json:"talking_photo_url"`
	AudioURL        string `json:"audio_url"`
}

// talkingPhotoResponse is the response from the talking-photo submit endpoint.
type talkingPhotoResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data struct {
		TaskID  string `json:"_id,omitempty"`
		VideoID string `json:"video_id,omitempty"`
	} `json:"data"`
}

// talkingPhotoStatusResponse is the response from the video-info endpoint.
type talkingPhotoStatusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data struct {
		VideoStatus int    `json:"video_status"`
		Video       string `json:"video,omitempty"`
		ErrorMsg    string `json:"error_msg,omitempty"`
	} `json:"data"`
}
