// Copyright 2025 The WordServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the morphserve CLI and msgpack analysis server.

morphserve segments agglutinative text into tagged morphemes, discovers new
words in raw corpora and feeds them back into its lexicon.

# Usage

Analyze a sentence with the model in ./models:

	morphserve analyze --model models "깜짝 놀랐다"

Analyze every line of a file on four workers, keeping the three best results:

	morphserve analyze --model models -n 3 --workers 4 < corpus.txt

Discover words in a corpus and store them:

	morphserve extract corpus.txt --store out.db

Extract, add, prepare and analyze in one pass:

	morphserve perform corpus.txt --store out.db

Serve msgpack requests over stdin/stdout:

	morphserve serve --model models

Compile a text dictionary into a binary model:

	morphserve build-model base.dict --transitions tags.tsv -o models

# Configuration

Settings come from morphserve.toml (see pkg/config), then MORPHSERVE_*
environment variables, then flags.

	[engine]
	workers = 0
	model_path = "models"
	options = ["mmap"]

	[extract]
	min_count = 10
	max_word_len = 10
*/
package main

import (
	"os"

	"github.com/bastiangx/morphserve/cmd/morphserve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
