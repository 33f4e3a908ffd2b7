// Package pkg provides the core libraries for cardpress PDF personalization.
//
// # Overview
//
// cardpress turns one PDF invitation into one PDF per guest. The template is
// rasterized once; for every guest the configured zones are erased and the
// guest's text is drawn into them at the largest size that fits. The pkg
// directory is organized into three areas:
//
//  1. Template - [config], [raster], [fonts] (what to draw and where)
//  2. Pixels - [pixel], [text], [document] (masking, compositing, encoding)
//  3. Batch - [pipeline], [sink], [report], [cache] (orchestration and output)
//
// # Architecture
//
// The typical data flow through cardpress:
//
//	base PDF + zone config
//	         ↓
//	    [raster] package (rasterize every page once)
//	         ↓
//	    [pipeline] package (per guest: copy edited pages)
//	         ↓
//	    [pixel] package (mask zone, composite fitted text)
//	         ↓
//	    [document] package (pages back into a PDF)
//	         ↓
//	    [sink] + [report] (one file per guest, batch report)
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/cardpress/pkg/config"
//	    "github.com/matzehuels/cardpress/pkg/pipeline"
//	    "github.com/matzehuels/cardpress/pkg/sink"
//	)
//
//	cfg, _ := config.Load("wedding.json")
//	proc, _ := pipeline.NewProcessor(ctx, cfg, pipeline.Options{DPI: 300})
//
//	guests, _ := pipeline.LoadGuestsFile("guests.csv")
//	w, _ := sink.NewFileWriter("out")
//	rep, err := proc.Run(ctx, guests, pipeline.IdentityMapping(cfg), w)
//
// # Main Packages
//
// [pipeline] - Template binding, per-guest personalization and the bounded
// worker pool behind batch runs. Output names are resolved before any work
// starts so they do not depend on scheduling.
//
// [raster] - Page rasterization through Ghostscript, with a cache wrapper
// keyed by document hash and DPI.
//
// [pixel] - Zone masking (solid or sampled background), shrink-to-fit text
// compositing and pixel diff verification.
//
// [text] - Text shaping with HarfBuzz-compatible shaping and a simple
// fallback renderer for when shaping is unavailable.
//
// [fonts] - Font registry: configured files, font directories, system fonts
// and a fallback chain.
//
// [document] - Rasterized pages back into PDF, one image per page sized to
// the original MediaBox.
//
// ## Infrastructure
//
// [cache] - File, Redis and null backends shared by raster and document
// caching.
//
// [observability] - Hooks for batch progress, cache activity and HTTP
// requests.
//
// [errors] - Error codes shared by the batch report, the CLI and the HTTP
// service.
package pkg
