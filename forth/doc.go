// Package forth is a small Forth-like stack machine for programs that decode
// event streams into typed output buffers.
//
// Program text declares its buffers and defines words:
//
//	input events
//	input data
//	output part-data int64
//	variable part-count
//	: part  events i-> stack drop  data q-> part-data  1 part-count +! ;
//	begin part again
//
// The compiler translates text into a Chunk: word bodies followed by the
// top-level code, with declarations referenced by index and relative jumps.
// Chunks serialize to canonical CBOR with MarshalChunk.
//
// A Program runs a Chunk against bound inputs. Whenever an input read finds
// fewer bytes than it needs, Resume returns with the instruction pointer
// still on the read; writing more input and calling Resume again continues
// exactly where it stopped. Checkpoint and Restore save and roll back the
// complete execution state, including output lengths, so a caller can undo
// a partially decoded value.
//
// # Words
//
//	stack       dup drop swap over rot
//	arithmetic  + - * / mod negate 1+ 1-
//	comparison  = <> < > <= >= 0=        (push 1 or 0)
//	bitwise     and or invert lshift rshift
//	control     if else then  begin while repeat  begin until  begin again
//	            case of endof endcase  exit  halt ( code -- )  pause
//	variables   NAME @   NAME !   NAME +!
//	inputs      IN i-> stack   IN q-> stack   IN peek
//	            IN q-> OUT   IN d-> OUT   IN z-> OUT   IN #B-> OUT ( n -- )
//	outputs     OUT <- stack   OUT +<- stack   OUT len
//
// Comments are ( ... ) and \ to end of line.
package forth
