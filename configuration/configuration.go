// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/logger"
)

// basic defaults (directories are relative to the configuration file)
const (
	defaultLogDirectory = "."
	defaultLogFile      = "bitmark-dbutil.log"
	defaultLogCount     = 10          //  number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size

	defaultBatchSize        = 10000
	defaultBatchBytes       = 64 * 1024 * 1024
	defaultProgressInterval = 10 // seconds
)

// Configuration - settings shared by all subcommands
type Configuration struct {
	MaxSize          uint64               `gluamapper:"max_size" json:"max_size"`
	BatchSize        int                  `gluamapper:"batch_size" json:"batch_size"`
	BatchBytes       int                  `gluamapper:"batch_bytes" json:"batch_bytes"`
	ProgressInterval int                  `gluamapper:"progress_interval" json:"progress_interval"`
	Logging          logger.Configuration `gluamapper:"logging" json:"logging"`
}

// Default - the configuration used when no file is given
//
// logs go to the console and to a per-user directory under the system
// temporary directory
func Default() *Configuration {
	return &Configuration{
		MaxSize:          0,
		BatchSize:        defaultBatchSize,
		BatchBytes:       defaultBatchBytes,
		ProgressInterval: defaultProgressInterval,
		Logging: logger.Configuration{
			Directory: TemporaryLogDirectory(),
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Console:   true,
			Levels: map[string]string{
				logger.DefaultTag: "critical",
			},
		},
	}
}

// Load - read a configuration file over the defaults
//
// an empty file name returns the defaults
func Load(fileName string) (*Configuration, error) {
	options := Default()
	if "" == fileName {
		if err := os.MkdirAll(options.Logging.Directory, 0700); nil != err {
			return nil, fault.NewIoError(options.Logging.Directory, err)
		}
		return options, nil
	}

	fileName, err := filepath.Abs(filepath.Clean(fileName))
	if nil != err {
		return nil, fault.NewIoError(fileName, err)
	}

	// absolute path to the directory of the configuration file
	dataDirectory, _ := filepath.Split(fileName)

	// file values replace the console and directory defaults
	options.Logging.Console = false
	options.Logging.Directory = defaultLogDirectory

	if err := ParseConfigurationFile(fileName, options); nil != err {
		return nil, err
	}

	if err := options.validate(); nil != err {
		return nil, err
	}

	// log file must be a plain name inside the log directory
	switch filepath.Dir(options.Logging.File) {
	case "", ".":
	default:
		return nil, fmt.Errorf("%w: log file: %q is not a plain name", fault.ErrInvalidConfiguration, options.Logging.File)
	}

	options.Logging.Directory = EnsureAbsolute(dataDirectory, options.Logging.Directory)
	if err := os.MkdirAll(options.Logging.Directory, 0700); nil != err {
		return nil, fault.NewIoError(options.Logging.Directory, err)
	}

	return options, nil
}

func (c *Configuration) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size: %d", fault.ErrInvalidConfiguration, c.BatchSize)
	}
	if c.BatchBytes <= 0 {
		return fmt.Errorf("%w: batch_bytes: %d", fault.ErrInvalidConfiguration, c.BatchBytes)
	}
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("%w: progress_interval: %d", fault.ErrInvalidConfiguration, c.ProgressInterval)
	}
	return nil
}

// TemporaryLogDirectory - log directory used without a configuration file
func TemporaryLogDirectory() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("bitmark-dbutil-%d", os.Getuid()))
}

// Interval - the progress log interval as a duration
func (c *Configuration) Interval() time.Duration {
	return time.Duration(c.ProgressInterval) * time.Second
}

// EnsureAbsolute - if path is relative then prepend directory to it
func EnsureAbsolute(directory string, filePath string) string {
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(directory, filePath)
	}
	return filepath.Clean(filePath)
}
