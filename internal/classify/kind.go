package classify

// Kind is the coarse category of a SQL statement's top-level intent.
// The set is closed: policy files may only reference these values, and
// anything the parser cannot map lands on KindUnknown.
type Kind string

const (
	KindSelect   Kind = "select"
	KindShow     Kind = "show"
	KindDescribe Kind = "describe"
	KindUse      Kind = "use"
	KindInsert   Kind = "insert"
	KindUpdate   Kind = "update"
	KindDelete   Kind = "delete"
	KindMerge    Kind = "merge"
	KindCreate   Kind = "create"
	KindAlter    Kind = "alter"
	KindDrop     Kind = "drop"
	KindUndrop   Kind = "undrop"
	KindTruncate Kind = "truncate"
	KindGrant    Kind = "grant"
	KindRevoke   Kind = "revoke"
	KindBegin    Kind = "begin"
	KindCommit   Kind = "commit"
	KindRollback Kind = "rollback"
	KindSet      Kind = "set"
	KindUnset    Kind = "unset"
	KindCall     Kind = "call"
	KindComment  Kind = "comment"
	KindExplain  Kind = "explain"
	KindCopy     Kind = "copy"
	KindUnknown  Kind = "unknown"
)

// Kinds lists every valid Kind in declaration order.
var Kinds = []Kind{
	KindSelect, KindShow, KindDescribe, KindUse,
	KindInsert, KindUpdate, KindDelete, KindMerge,
	KindCreate, KindAlter, KindDrop, KindUndrop, KindTruncate,
	KindGrant, KindRevoke,
	KindBegin, KindCommit, KindRollback,
	KindSet, KindUnset,
	KindCall, KindComment, KindExplain, KindCopy,
	KindUnknown,
}

var kindSet = func() map[Kind]struct{} {
	s := make(map[Kind]struct{}, len(Kinds))
	for _, k := range Kinds {
		s[k] = struct{}{}
	}
	return s
}()

// KindFromString maps a lowercase name onto a Kind.
// Returns (KindUnknown, false) for names outside the closed set.
func KindFromString(name string) (Kind, bool) {
	k := Kind(name)
	if _, ok := kindSet[k]; ok {
		return k, true
	}
	return KindUnknown, false
}

func (k Kind) String() string { return string(k) }
