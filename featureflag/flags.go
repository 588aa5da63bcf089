package featureflag

type Flag string

const (
	FlagDisableMapState              Flag = "DISABLE_MAP_STATE"
	FlagDisableObjectLinkBroadcast   Flag = "DISABLE_OBJECT_LINK_BROADCAST"
	FlagDisableObjectMoveBroadcast   Flag = "DISABLE_OBJECT_MOVE_BROADCAST"
	FlagDisableObjectUnlinkBroadcast Flag = "DISABLE_OBJECT_UNLINK_BROADCAST"
	FlagDisableLineBroadcast         Flag = "DISABLE_LINE_BROADCAST"
	FlagDisableMapResetBroadcast     Flag = "DISABLE_MAP_RESET_BROADCAST"
	FlagDisableMapReset              Flag = "DISABLE_MAP_RESET"
	FlagDisablePathQuery             Flag = "DISABLE_PATH_QUERY"
	FlagDisableDebugInfo             Flag = "DISABLE_DEBUG_INFO"
)
