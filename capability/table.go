package capability

import (
	"fmt"
	"sort"
	"strings"
)

// Kind tags one argument slot.
type Kind uint8

const (
	// Scalar slots are forwarded unchanged.
	Scalar Kind = iota
	// Pointer slots hold a guest displacement and are translated to a host address.
	Pointer
)

func (k Kind) String() string {
	if k == Pointer {
		return "ptr"
	}
	return "int"
}

// Result tags what the guest receives back.
type Result uint8

const (
	// None always yields 0 regardless of what the host returns.
	None Result = iota
	// Value forwards the host return word.
	Value
	// GuestPointer forwards a host address translated back into a displacement.
	GuestPointer
)

func (r Result) String() string {
	switch r {
	case Value:
		return "value"
	case GuestPointer:
		return "ptr"
	default:
		return "void"
	}
}

// Convention is the calling convention of one capability.
type Convention struct {
	Params []Kind
	ID     ID
	Result Result
}

// Arity returns the number of argument slots the capability consumes.
func (c Convention) Arity() int { return len(c.Params) }

// Pointers returns the indexes of pointer slots.
func (c Convention) Pointers() []int {
	var idx []int
	for i, k := range c.Params {
		if k == Pointer {
			idx = append(idx, i)
		}
	}
	return idx
}

// Signature renders the convention as "CG_FS_READ(ptr, int, int) void".
func (c Convention) Signature() string {
	parts := make([]string, len(c.Params))
	for i, k := range c.Params {
		parts[i] = k.String()
	}
	return c.ID.String() + "(" + strings.Join(parts, ", ") + ") " + c.Result.String()
}

const (
	s = Scalar
	p = Pointer
)

func def(id ID, r Result, params ...Kind) Convention {
	return Convention{ID: id, Result: r, Params: params}
}

var conventions = []Convention{
	def(Print, None, p),
	def(Error, None, p),
	def(Milliseconds, Value),
	def(CvarRegister, None, p, p, p, s),
	def(CvarUpdate, None, p),
	def(CvarSet, None, p, p),
	def(CvarVariableStringBuffer, None, p, p, s),
	def(Argc, Value),
	def(Argv, None, s, p, s),
	def(Args, None, p, s),
	def(FSFOpenFile, Value, p, p, s),
	def(FSRead, None, p, s, s),
	def(FSWrite, None, p, s, s),
	def(FSFCloseFile, None, s),
	def(SendConsoleCommand, None, p),
	def(AddCommand, None, p),
	def(SendClientCommand, None, p),
	def(UpdateScreen, None),
	def(CMLoadMap, None, p),
	def(CMNumInlineModels, Value),
	def(CMInlineModel, Value, s),
	def(CMTempBoxModel, Value, p, p),
	def(CMPointContents, Value, p, s),
	def(CMTransformedPointContents, Value, p, s, p, p),
	def(CMBoxTrace, None, p, p, p, p, p, s, s),
	def(CMTransformedBoxTrace, None, p, p, p, p, p, s, s, p, p),
	def(CMMarkFragments, Value, s, p, p, s, p, s, p),
	def(SStartSound, None, p, s, s, s),
	def(SStartLocalSound, None, s, s),
	def(SClearLoopingSounds, None, s),
	def(SAddLoopingSound, None, s, p, p, s),
	def(SUpdateEntityPosition, None, s, p),
	def(SRespatialize, None, s, p, p, s),
	def(SRegisterSound, Value, p, s),
	def(SStartBackgroundTrack, None, p, p),
	def(RLoadWorldMap, None, p),
	def(RRegisterModel, Value, p),
	def(RRegisterSkin, Value, p),
	def(RRegisterShader, Value, p),
	def(RClearScene, None),
	def(RAddRefEntityToScene, None, p),
	def(RAddPolyToScene, None, s, s, p),
	def(RAddLightToScene, None, p, s, s, s, s),
	def(RRenderScene, None, p),
	def(RSetColor, None, p),
	def(RDrawStretchPic, None, s, s, s, s, s, s, s, s, s),
	def(RModelBounds, None, s, p, p),
	def(RLerpTag, Value, p, s, s, s, s, p),
	def(GetGLConfig, None, p),
	def(GetGameState, None, p),
	def(GetCurrentSnapshotNumber, None, p, p),
	def(GetSnapshot, Value, s, p),
	def(GetServerCommand, Value, s),
	def(GetCurrentCmdNumber, Value),
	def(GetUserCmd, Value, s, p),
	def(SetUserCmdValue, None, s, s),
	def(RRegisterShaderNoMip, Value, p),
	def(MemoryRemaining, Value),
	def(RRegisterFont, None, p, s, p),
	def(KeyIsDown, Value, s),
	def(KeyGetCatcher, Value),
	def(KeySetCatcher, None, s),
	def(KeyGetKey, Value, p),
	def(PCAddGlobalDefine, Value, p),
	def(PCLoadSource, Value, p),
	def(PCFreeSource, Value, s),
	def(PCReadToken, Value, s, p),
	def(PCSourceFileAndLine, Value, s, p, p),
	def(SStopBackgroundTrack, None),
	def(RealTime, Value, p),
	def(SnapVector, None, p),
	def(RemoveCommand, None, p),
	def(RLightForPoint, Value, p, p, p, p),
	def(CinPlayCinematic, Value, p, s, s, s, s, s),
	def(CinStopCinematic, Value, s),
	def(CinRunCinematic, Value, s),
	def(CinDrawCinematic, None, s),
	def(CinSetExtents, None, s, s, s, s, s),
	def(RRemapShader, None, p, p, p),
	def(SAddRealLoopingSound, None, s, p, p, s),
	def(SStopLoopingSound, None, s),
	def(CMTempCapsuleModel, Value, p, p),
	def(CMCapsuleTrace, None, p, p, p, p, p, s, s),
	def(CMTransformedCapsuleTrace, None, p, p, p, p, p, s, s, p, p),
	def(RAddAdditiveLightToScene, None, p, s, s, s, s),
	def(GetEntityToken, Value, p, s),
	def(RAddPolysToScene, None, s, s, p, s),
	def(RInPVS, Value, p, p),
	def(FSSeek, Value, s, s, s),

	def(MemSet, None, p, s, s),
	def(MemCpy, None, p, p, s),
	def(StrNCpy, GuestPointer, p, p, s),
	def(Sin, Value, s),
	def(Cos, Value, s),
	def(Atan2, Value, s, s),
	def(Sqrt, Value, s),
	def(Floor, Value, s),
	def(Ceil, Value, s),
	def(ACos, Value, s),
}

var (
	table    map[ID]Convention
	ordered  []Convention
	maxArity int
)

func init() {
	t, err := build(conventions)
	if err != nil {
		panic(err)
	}
	table = t
	ordered = make([]Convention, 0, len(t))
	for _, c := range t {
		ordered = append(ordered, c)
		if c.Arity() > maxArity {
			maxArity = c.Arity()
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
}

// build indexes the conventions and verifies the table covers every declared,
// non-retired identifier exactly once.
func build(list []Convention) (map[ID]Convention, error) {
	t := make(map[ID]Convention, len(list))
	for _, c := range list {
		if !Declared(c.ID) {
			return nil, fmt.Errorf("capability table: %v is not a declared identifier", c.ID)
		}
		if Retired(c.ID) {
			return nil, fmt.Errorf("capability table: %v is retired", c.ID)
		}
		if _, dup := t[c.ID]; dup {
			return nil, fmt.Errorf("capability table: %v declared twice", c.ID)
		}
		t[c.ID] = c
	}
	for _, blk := range declared {
		for id := blk[0]; id <= blk[1]; id++ {
			if _, ok := t[id]; !ok && !Retired(id) {
				return nil, fmt.Errorf("capability table: no convention for %v", id)
			}
		}
	}
	return t, nil
}

// Lookup returns the calling convention for id. Unknown and retired identifiers
// report false.
func Lookup(id ID) (Convention, bool) {
	c, ok := table[id]
	return c, ok
}

// All returns every served convention ordered by identifier.
func All() []Convention {
	out := make([]Convention, len(ordered))
	copy(out, ordered)
	return out
}

// MaxArity returns the largest arity in the table.
func MaxArity() int { return maxArity }
