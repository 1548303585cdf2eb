/*
Package mkey implements order-preserving ("memcomparable") encoding of
M-style subscripts and composite keys.

A subscript is either a signed 64-bit integer or a text string. A composite
key is a non-empty tuple of subscripts. Every value encodes to a byte string,
and comparing two encodings with bytes.Compare gives the same answer as
comparing the values themselves:

 1. Integers sort numerically.

 2. Text sorts byte-wise.

 3. Every integer sorts before every text.

 4. Composite keys sort component by component, and a key sorts before any of
    its extensions, so ("users", 1) < ("users", 1, "email") < ("users", 2).

This lets a sorted key-value store (Bolt, in our case, see package globals)
keep hierarchical data in its natural order without ever decoding keys for
comparison.

# Binary encoding

The scheme is the one used for M globals by GT.M and YottaDB, restricted to
integers.

**Zero** is the single byte 0x40.

**Positive integers.** The magnitude is split into base-100 digit pairs,
most significant first (12345 → 1, 23, 45). The first byte is 0x40 plus the
number of pairs (0x41–0x4A), followed by one byte per pair from the positive
table (pair d → 0x10*(d/10) + d%10 + 1, giving 0x01–0x9A).

**Negative integers.** The first byte is 0x3F minus the number of pairs
(0x3E–0x35), so that more pairs sort earlier. Pairs are mapped through the
negative table (pair d → 0xFE − 0x10*(d/10) − d%10, giving 0xFE–0x65),
and the encoding ends with the terminator 0xFF.

**Text** is the prefix byte 0xFF followed by the string bytes, with 0x00 and
0x01 escaped as 0x01 followed by the byte XOR 0xFF.

**Composite keys** join the encodings of their components with 0x00. No
component encoding contains a 0x00 byte, so splitting is unambiguous.

The escapes keep 0x00 and 0x01 below every other byte, but they also swap
the two: "a\x01" sorts before "a\x00". Keys that never contain both bytes at
the same position are unaffected.

Decoding is strict: anything that the encoder could not have produced is
reported as ErrMalformed.
*/
package mkey
