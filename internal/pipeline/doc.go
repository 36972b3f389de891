// Package pipeline implements the staged preparation of the ASVspoof LA
// corpus: download and extraction, evaluation-protocol normalization,
// canonical test/train layouts, and augmentation-corpus staging.
//
// Stages form a dispatch table executed in ascending numeric order,
// filtered by the requested range. Each stage body is idempotent at
// directory granularity: when its target directory exists the body is
// skipped wholesale, even if the directory is incomplete. An interrupted
// stage therefore leaves a directory the next run treats as complete;
// delete the directory to force a rebuild.
package pipeline
