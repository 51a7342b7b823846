// Package frame models raw video frames and converts between the
// transport's planar YUV representation and the RGB images consumed by
// frame transforms.
//
// The wire format is I420 (YUV 4:2:0 planar): a full-resolution luma
// plane followed by quarter-resolution Cb and Cr planes. For a WxH
// frame the buffer holds exactly W*H + 2*(ceil(W/2)*ceil(H/2)) bytes,
// which is W*H*3/2 for even dimensions. Buffers that do not match the
// declared dimensions are rejected, never guessed at.
//
// Conversion in both directions goes through the standard library's
// BT.601 YCbCr coefficients. Decoding resizes to a fixed square edge
// because the downstream model contract is a fixed-size input; the
// aspect ratio of the source is intentionally not preserved there.
package frame
