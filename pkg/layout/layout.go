package layout

// Ring and pipe geometry.
const (
	// MsgEntries is the capacity of the message ring. One slot always stays
	// empty, so at most MsgEntries-1 messages are outstanding.
	MsgEntries = 128

	// MaxPipes is the number of data pipes that get head/tail index cells.
	MaxPipes = 6

	// EntrySize is the size in bytes of a single message ring entry.
	EntrySize = 24
)

// Block offsets inside the shared region.
const (
	ContextInfoOffset = 0
	ContextInfoSize   = 56

	DeviceInfoOffset        = ContextInfoOffset + ContextInfoSize
	ExecStageOffset         = DeviceInfoOffset
	IPCStatusOffset         = DeviceInfoOffset + 4
	SleepNotificationOffset = DeviceInfoOffset + 8
	DeviceInfoSize          = 12

	MsgHeadOffset   = DeviceInfoOffset + DeviceInfoSize
	HeadArrayOffset = MsgHeadOffset + 4
	MsgTailOffset   = HeadArrayOffset + 4*MaxPipes
	TailArrayOffset = MsgTailOffset + 4

	// MsgRingOffset is 8-byte aligned so 64-bit fields inside entries are.
	MsgRingOffset = (TailArrayOffset + 4*MaxPipes + 7) &^ 7
	MsgRingSize   = MsgEntries * EntrySize

	// RegionSize is the number of bytes the AP must allocate.
	RegionSize = MsgRingOffset + MsgRingSize
)

// Field describes one block of the region for diagnostics.
type Field struct {
	Name   string `json:"name" yaml:"name" cbor:"name"`
	Offset int    `json:"offset" yaml:"offset" cbor:"offset"`
	Size   int    `json:"size" yaml:"size" cbor:"size"`
	Writer string `json:"writer" yaml:"writer" cbor:"writer"`
}

// Fields lists every block of the region in address order.
func Fields() []Field {
	return []Field{
		{Name: "context_info", Offset: ContextInfoOffset, Size: ContextInfoSize, Writer: "AP"},
		{Name: "device_info.execution_stage", Offset: ExecStageOffset, Size: 4, Writer: "CP"},
		{Name: "device_info.ipc_status", Offset: IPCStatusOffset, Size: 4, Writer: "CP"},
		{Name: "device_info.sleep_notification", Offset: SleepNotificationOffset, Size: 4, Writer: "CP"},
		{Name: "msg_head", Offset: MsgHeadOffset, Size: 4, Writer: "AP"},
		{Name: "head_array", Offset: HeadArrayOffset, Size: 4 * MaxPipes, Writer: "AP"},
		{Name: "msg_tail", Offset: MsgTailOffset, Size: 4, Writer: "CP"},
		{Name: "tail_array", Offset: TailArrayOffset, Size: 4 * MaxPipes, Writer: "CP"},
		{Name: "msg_ring", Offset: MsgRingOffset, Size: MsgRingSize, Writer: "AP/CP"},
	}
}

// EntryOffset returns the offset of ring entry slot.
func EntryOffset(slot uint32) int {
	return MsgRingOffset + int(slot)*EntrySize
}
