// Package qiime drives the QIIME 2 command-line interface.
//
// Each plugin action is described by an Action value built with one of the
// constructors in actions.go. Client.Invoke turns it into a
// `qiime <plugin> <method> --i-* --p-* --m-* --o-*` command, runs it through
// an Executor, and checks that every declared output was written. Output
// kinds decide the file extension: artifacts are saved as .qza and
// visualizations as .qzv.
package qiime
