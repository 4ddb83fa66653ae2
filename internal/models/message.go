package models

// WSMessage is the envelope for every frame on the event channel.
type WSMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Client → Server message types
const (
	MsgTypeJoinSession      = "join_session"
	MsgTypeStartCalibration = "start_calibration"
	MsgTypeCalibrationDone  = "calibration_done"
	MsgTypeSendImage        = "send_image"
	MsgTypeGazeData         = "gaze_data"
	MsgTypeEndSession       = "end_session"
)

// Server → Client message types
const (
	MsgTypeInitCalibration = "init_calibration"
	MsgTypeUserCalibrated  = "user_calibrated"
	MsgTypeNewImage        = "new_image"
	MsgTypeReceiveGaze     = "receive_gaze"
	MsgTypeSessionEnded    = "session_ended"
	MsgTypeNewInvitation   = "new_invitation"
	MsgTypeError           = "error"
)
