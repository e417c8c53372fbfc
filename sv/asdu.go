package sv

import (
	"errors"
	"fmt"
	"strings"

	"subsv/ptp"
)

// SmpSynch identifies the clock-synchronization source of an ASDU.
type SmpSynch uint8

const (
	SmpSynchNone SmpSynch = iota
	SmpSynchLocal
	SmpSynchGlobal
)

// DatasetSize is the fixed channel count per ASDU: Ia, Ib, Ic, In, Va, Vb, Vc, Vn.
const DatasetSize = 8

// SvIDMaxLen is the on-wire fixed field width for ASDU.SvID.
const SvIDMaxLen = 64

// ErrInvalidASDU is returned when an ASDU fails its construction invariants.
var ErrInvalidASDU = errors.New("sv: invalid ASDU")

// ASDU is one Application Service Data Unit: a single sampled-values payload.
type ASDU struct {
	SvID             string
	SmpCnt           uint16
	ConfRev          uint32
	SmpSynch         SmpSynch
	DataSet          [DatasetSize]AnalogValue
	GmIdentity       *[8]byte
	Timestamp        ptp.Timestamp
	TimestampMissing bool // set by the parser when the trailer was truncated
}

// Validate enforces the ASDU invariants from the data model: a non-empty
// svID of at least 2 characters and exactly DatasetSize channels (the
// array type already guarantees the latter).
func (a *ASDU) Validate() error {
	id := strings.TrimRight(strings.TrimRight(a.SvID, "\x00"), " ")
	if len(id) < 2 {
		return fmt.Errorf("%w: svID too short: %q", ErrInvalidASDU, a.SvID)
	}
	if a.SmpSynch == SmpSynchGlobal && a.GmIdentity == nil {
		return fmt.Errorf("%w: smpSynch=Global requires gmIdentity", ErrInvalidASDU)
	}
	return nil
}
