// Package atomicfile implements the staged-write plus atomic-rename protocol
// that underpins every cache mutation.
//
// Writers obtain a Staging handle bound to a namespace's .in-progress
// directory, stream bytes to its path, and either Commit (atomic rename onto
// the canonical path) or Abort (staging file removed). Readers therefore only
// ever observe fully written files. Staging files left behind by crashed
// processes are reclaimed by PurgeOrphans, which keys off file age and the
// owning PID embedded in the staging name.
//
// The staging directory always lives on the same volume as the canonical
// namespace directory; os.Rename would otherwise degrade to a copy and lose
// its atomicity guarantee.
package atomicfile
