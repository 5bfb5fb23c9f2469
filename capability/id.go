package capability

import "strconv"

// ID identifies one host capability. Values are fixed by the cgame system-call ABI
// and shared with guest bytecode; never renumber or reuse them.
type ID int32

const (
	Print ID = iota
	Error
	Milliseconds
	CvarRegister
	CvarUpdate
	CvarSet
	CvarVariableStringBuffer
	Argc
	Argv
	Args
	FSFOpenFile
	FSRead
	FSWrite
	FSFCloseFile
	SendConsoleCommand
	AddCommand
	SendClientCommand
	UpdateScreen
	CMLoadMap
	CMNumInlineModels
	CMInlineModel
	CMLoadModel // retired
	CMTempBoxModel
	CMPointContents
	CMTransformedPointContents
	CMBoxTrace
	CMTransformedBoxTrace
	CMMarkFragments
	SStartSound
	SStartLocalSound
	SClearLoopingSounds
	SAddLoopingSound
	SUpdateEntityPosition
	SRespatialize
	SRegisterSound
	SStartBackgroundTrack
	RLoadWorldMap
	RRegisterModel
	RRegisterSkin
	RRegisterShader
	RClearScene
	RAddRefEntityToScene
	RAddPolyToScene
	RAddLightToScene
	RRenderScene
	RSetColor
	RDrawStretchPic
	RModelBounds
	RLerpTag
	GetGLConfig
	GetGameState
	GetCurrentSnapshotNumber
	GetSnapshot
	GetServerCommand
	GetCurrentCmdNumber
	GetUserCmd
	SetUserCmdValue
	RRegisterShaderNoMip
	MemoryRemaining
	RRegisterFont
	KeyIsDown
	KeyGetCatcher
	KeySetCatcher
	KeyGetKey
	PCAddGlobalDefine
	PCLoadSource
	PCFreeSource
	PCReadToken
	PCSourceFileAndLine
	SStopBackgroundTrack
	RealTime
	SnapVector
	RemoveCommand
	RLightForPoint
	CinPlayCinematic
	CinStopCinematic
	CinRunCinematic
	CinDrawCinematic
	CinSetExtents
	RRemapShader
	SAddRealLoopingSound
	SStopLoopingSound
	CMTempCapsuleModel
	CMCapsuleTrace
	CMTransformedCapsuleTrace
	RAddAdditiveLightToScene
	GetEntityToken
	RAddPolysToScene
	RInPVS
	FSSeek
)

// Math and memory helpers live in a separate block so the engine can grow the
// main block without colliding with them.
const (
	MemSet ID = iota + 100
	MemCpy
	StrNCpy
	Sin
	Cos
	Atan2
	Sqrt
	Floor
	Ceil
	TestPrintInt   // retired
	TestPrintFloat // retired
	ACos
)

// declared lists every contiguous block of identifiers known to this table version.
var declared = [][2]ID{
	{Print, FSSeek},
	{MemSet, ACos},
}

// retired identifiers keep their numbers reserved; guests calling them get the
// unknown-capability no-op.
var retired = map[ID]struct{}{
	CMLoadModel:    {},
	TestPrintInt:   {},
	TestPrintFloat: {},
}

// Retired reports whether id was part of the ABI but is no longer served.
func Retired(id ID) bool {
	_, ok := retired[id]
	return ok
}

// Declared reports whether id belongs to the closed enumeration, retired or not.
func Declared(id ID) bool {
	for _, blk := range declared {
		if id >= blk[0] && id <= blk[1] {
			return true
		}
	}
	return false
}

var names = map[ID]string{
	Print:                      "CG_PRINT",
	Error:                      "CG_ERROR",
	Milliseconds:               "CG_MILLISECONDS",
	CvarRegister:               "CG_CVAR_REGISTER",
	CvarUpdate:                 "CG_CVAR_UPDATE",
	CvarSet:                    "CG_CVAR_SET",
	CvarVariableStringBuffer:   "CG_CVAR_VARIABLESTRINGBUFFER",
	Argc:                       "CG_ARGC",
	Argv:                       "CG_ARGV",
	Args:                       "CG_ARGS",
	FSFOpenFile:                "CG_FS_FOPENFILE",
	FSRead:                     "CG_FS_READ",
	FSWrite:                    "CG_FS_WRITE",
	FSFCloseFile:               "CG_FS_FCLOSEFILE",
	SendConsoleCommand:         "CG_SENDCONSOLECOMMAND",
	AddCommand:                 "CG_ADDCOMMAND",
	SendClientCommand:          "CG_SENDCLIENTCOMMAND",
	UpdateScreen:               "CG_UPDATESCREEN",
	CMLoadMap:                  "CG_CM_LOADMAP",
	CMNumInlineModels:          "CG_CM_NUMINLINEMODELS",
	CMInlineModel:              "CG_CM_INLINEMODEL",
	CMLoadModel:                "CG_CM_LOADMODEL",
	CMTempBoxModel:             "CG_CM_TEMPBOXMODEL",
	CMPointContents:            "CG_CM_POINTCONTENTS",
	CMTransformedPointContents: "CG_CM_TRANSFORMEDPOINTCONTENTS",
	CMBoxTrace:                 "CG_CM_BOXTRACE",
	CMTransformedBoxTrace:      "CG_CM_TRANSFORMEDBOXTRACE",
	CMMarkFragments:            "CG_CM_MARKFRAGMENTS",
	SStartSound:                "CG_S_STARTSOUND",
	SStartLocalSound:           "CG_S_STARTLOCALSOUND",
	SClearLoopingSounds:        "CG_S_CLEARLOOPINGSOUNDS",
	SAddLoopingSound:           "CG_S_ADDLOOPINGSOUND",
	SUpdateEntityPosition:      "CG_S_UPDATEENTITYPOSITION",
	SRespatialize:              "CG_S_RESPATIALIZE",
	SRegisterSound:             "CG_S_REGISTERSOUND",
	SStartBackgroundTrack:      "CG_S_STARTBACKGROUNDTRACK",
	RLoadWorldMap:              "CG_R_LOADWORLDMAP",
	RRegisterModel:             "CG_R_REGISTERMODEL",
	RRegisterSkin:              "CG_R_REGISTERSKIN",
	RRegisterShader:            "CG_R_REGISTERSHADER",
	RClearScene:                "CG_R_CLEARSCENE",
	RAddRefEntityToScene:       "CG_R_ADDREFENTITYTOSCENE",
	RAddPolyToScene:            "CG_R_ADDPOLYTOSCENE",
	RAddLightToScene:           "CG_R_ADDLIGHTTOSCENE",
	RRenderScene:               "CG_R_RENDERSCENE",
	RSetColor:                  "CG_R_SETCOLOR",
	RDrawStretchPic:            "CG_R_DRAWSTRETCHPIC",
	RModelBounds:               "CG_R_MODELBOUNDS",
	RLerpTag:                   "CG_R_LERPTAG",
	GetGLConfig:                "CG_GETGLCONFIG",
	GetGameState:               "CG_GETGAMESTATE",
	GetCurrentSnapshotNumber:   "CG_GETCURRENTSNAPSHOTNUMBER",
	GetSnapshot:                "CG_GETSNAPSHOT",
	GetServerCommand:           "CG_GETSERVERCOMMAND",
	GetCurrentCmdNumber:        "CG_GETCURRENTCMDNUMBER",
	GetUserCmd:                 "CG_GETUSERCMD",
	SetUserCmdValue:            "CG_SETUSERCMDVALUE",
	RRegisterShaderNoMip:       "CG_R_REGISTERSHADERNOMIP",
	MemoryRemaining:            "CG_MEMORY_REMAINING",
	RRegisterFont:              "CG_R_REGISTERFONT",
	KeyIsDown:                  "CG_KEY_ISDOWN",
	KeyGetCatcher:              "CG_KEY_GETCATCHER",
	KeySetCatcher:              "CG_KEY_SETCATCHER",
	KeyGetKey:                  "CG_KEY_GETKEY",
	PCAddGlobalDefine:          "CG_PC_ADD_GLOBAL_DEFINE",
	PCLoadSource:               "CG_PC_LOAD_SOURCE",
	PCFreeSource:               "CG_PC_FREE_SOURCE",
	PCReadToken:                "CG_PC_READ_TOKEN",
	PCSourceFileAndLine:        "CG_PC_SOURCE_FILE_AND_LINE",
	SStopBackgroundTrack:       "CG_S_STOPBACKGROUNDTRACK",
	RealTime:                   "CG_REAL_TIME",
	SnapVector:                 "CG_SNAPVECTOR",
	RemoveCommand:              "CG_REMOVECOMMAND",
	RLightForPoint:             "CG_R_LIGHTFORPOINT",
	CinPlayCinematic:           "CG_CIN_PLAYCINEMATIC",
	CinStopCinematic:           "CG_CIN_STOPCINEMATIC",
	CinRunCinematic:            "CG_CIN_RUNCINEMATIC",
	CinDrawCinematic:           "CG_CIN_DRAWCINEMATIC",
	CinSetExtents:              "CG_CIN_SETEXTENTS",
	RRemapShader:               "CG_R_REMAP_SHADER",
	SAddRealLoopingSound:       "CG_S_ADDREALLOOPINGSOUND",
	SStopLoopingSound:          "CG_S_STOPLOOPINGSOUND",
	CMTempCapsuleModel:         "CG_CM_TEMPCAPSULEMODEL",
	CMCapsuleTrace:             "CG_CM_CAPSULETRACE",
	CMTransformedCapsuleTrace:  "CG_CM_TRANSFORMEDCAPSULETRACE",
	RAddAdditiveLightToScene:   "CG_R_ADDADDITIVELIGHTTOSCENE",
	GetEntityToken:             "CG_GET_ENTITY_TOKEN",
	RAddPolysToScene:           "CG_R_ADDPOLYSTOSCENE",
	RInPVS:                     "CG_R_INPVS",
	FSSeek:                     "CG_FS_SEEK",
	MemSet:                     "CG_MEMSET",
	MemCpy:                     "CG_MEMCPY",
	StrNCpy:                    "CG_STRNCPY",
	Sin:                        "CG_SIN",
	Cos:                        "CG_COS",
	Atan2:                      "CG_ATAN2",
	Sqrt:                       "CG_SQRT",
	Floor:                      "CG_FLOOR",
	Ceil:                       "CG_CEIL",
	TestPrintInt:               "CG_TESTPRINTINT",
	TestPrintFloat:             "CG_TESTPRINTFLOAT",
	ACos:                       "CG_ACOS",
}

var byName = func() map[string]ID {
	m := make(map[string]ID, len(names))
	for id, n := range names {
		m[n] = id
	}
	return m
}()

// String returns the ABI name, or "capability(N)" for undeclared identifiers.
func (id ID) String() string {
	if n, ok := names[id]; ok {
		return n
	}
	return "capability(" + strconv.Itoa(int(id)) + ")"
}

// Parse resolves an ABI name ("CG_R_RENDERSCENE") or a decimal identifier.
func Parse(s string) (ID, bool) {
	if id, ok := byName[s]; ok {
		return id, true
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return ID(n), true
}
