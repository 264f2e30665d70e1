package go_bcapi

// getMessageKindName returns a human-readable name for BCAPI message kinds
// This is useful for wire-level debugging and logging
func getMessageKindName(kind uint8) string {
	switch kind {
	case BCAPI_MSG_LOGIN:
		return "Login"
	case BCAPI_MSG_STATE_QUERY:
		return "StateQuery"
	case BCAPI_MSG_STATE_QUERY_FILTERED:
		return "StateQueryFiltered"
	case BCAPI_MSG_CONFIG_SET:
		return "ConfigSet"
	case BCAPI_MSG_STATE_REPLY:
		return "StateReply"
	case BCAPI_MSG_CONFIG_ACK:
		return "ConfigAck"
	case BCAPI_MSG_ERROR:
		return "Error"
	case BCAPI_MSG_ANY:
		return "ANY (receive any kind)"
	default:
		return "Unknown"
	}
}

// getStatusName returns a human-readable name for BCAPI result statuses.
func getStatusName(status uint16) string {
	switch status {
	case BCAPI_STATUS_SUCCESS:
		return "SUCCESS"
	case BCAPI_STATUS_FAILURE:
		return "FAILURE"
	case BCAPI_STATUS_BAD_CREDENTIALS:
		return "BAD_CREDENTIALS"
	case BCAPI_STATUS_NOT_AUTHORIZED:
		return "NOT_AUTHORIZED"
	case BCAPI_STATUS_BAD_REQUEST:
		return "BAD_REQUEST"
	case BCAPI_STATUS_UNSUPPORTED:
		return "UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}
