// Package pipeline drives the fixed sequence of QIIME 2 stages for one
// configured action.
//
// Stages and their dependencies form a DAG (see Graph). A run walks the
// stages in their fixed order, invoking qiime for each enabled stage and
// collecting the named results it produces in a per-run work directory.
// Results are then moved into the action's output directory as
// <name>.qza or <name>.qzv and recorded in the run history store. The
// first stage error aborts the run; nothing is retried.
package pipeline
