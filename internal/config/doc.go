// Package config loads benchmark runs from YAML files.
//
// A file selects the backends, tunes the pipeline stages, names the image
// sequence to process and lists the metric outputs. Every field is
// optional; missing fields keep the values from Default, which reproduce
// the classic KITTI camera sequence setup: ten frames named
// 000000NNNN.png, FAST keypoints restricted to the preceding vehicle,
// BRIEF descriptors, brute-force Hamming matching with the ratio test.
//
// # Environment
//
// FEATURE_BENCH_LOG_LEVEL overrides log_level after the file is read.
//
// # Example
//
//	detector: HARRIS
//	descriptor: HOG
//	matcher: MAT_FLANN
//	distance: DES_HOG
//	selector: SEL_KNN
//	images:
//	  base_dir: ../images/
//	  prefix: KITTI/2011_09_26/image_00/data/000000
//	  extension: .png
//	  start_index: 0
//	  end_index: 9
//	  fill_width: 4
//	output:
//	  dir: results
//	  json: true
//	  prometheus_textfile: results/feature_bench.prom
package config
