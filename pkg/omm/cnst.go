package omm

// Directory filter ids
const (
	FilterInfo  uint32 = 0x01
	FilterState uint32 = 0x02
	FilterGroup uint32 = 0x04
	FilterLoad  uint32 = 0x08
	FilterData  uint32 = 0x10
	FilterLink  uint32 = 0x20
)

// Dictionary verbosity, carried in the request filter
const (
	DictVerbosityInfo    uint32 = 0x00
	DictVerbosityMinimal uint32 = 0x03
	DictVerbosityNormal  uint32 = 0x07
	DictVerbosityVerbose uint32 = 0x0F
)

// Dictionary types
const (
	DictTypeFieldDefinitions int64 = 1
	DictTypeEnumTables       int64 = 2
)

// Login attrib element names
const (
	ElemApplicationID               = "ApplicationId"
	ElemApplicationName             = "ApplicationName"
	ElemPosition                    = "Position"
	ElemPassword                    = "Password"
	ElemAuthenticationToken         = "AuthenticationToken"
	ElemAllowSuspectData            = "AllowSuspectData"
	ElemSingleOpen                  = "SingleOpen"
	ElemProvidePermissionProfile    = "ProvidePermissionProfile"
	ElemSupportPauseResume          = "SupportPauseResume"
	ElemSupportOptimizedPauseResume = "SupportOptimizedPauseResume"
	ElemSupportStandby              = "SupportStandby"
	ElemSupportBatchRequests        = "SupportBatchRequests"
)

// Directory element names
const (
	ElemName                 = "Name"
	ElemVendor               = "Vendor"
	ElemIsSource             = "IsSource"
	ElemCapabilities         = "Capabilities"
	ElemDictionariesProvided = "DictionariesProvided"
	ElemDictionariesUsed     = "DictionariesUsed"
	ElemQoS                  = "QoS"
	ElemServiceState         = "ServiceState"
	ElemAcceptingRequests    = "AcceptingRequests"
	ElemStatus               = "Status"
	ElemGroup                = "Group"
)

// Dictionary summary element names
const (
	ElemDictionaryID = "DictionaryId"
	ElemType         = "Type"
	ElemVersion      = "Version"
	ElemCount        = "Count"
)

// Map actions
const (
	MapActionAdd    = "add"
	MapActionUpdate = "update"
	MapActionDelete = "delete"
)
