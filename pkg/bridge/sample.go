package bridge

// SampleEvery reports whether the frame at frameIndex is processed
// under the given stride. Indices count received frames from zero, so
// the first frame of a stream is always sampled. A stride of zero or
// one samples everything. The decision depends only on the arguments;
// dropped or failed frames upstream do not shift it.
func SampleEvery(frameIndex uint64, stride uint32) bool {
	if stride <= 1 {
		return true
	}
	return frameIndex%uint64(stride) == 0
}
