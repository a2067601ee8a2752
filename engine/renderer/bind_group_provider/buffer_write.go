package bind_group_provider

// BufferWrite is a queued write into the buffer at a provider binding.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}
