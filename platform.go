package capnp

// maxInt is the maximum value of the platform's int type, used by
// maxAllocSize to pick a safe ceiling for Size<->int conversions.
const maxInt = int(^uint(0) >> 1)
