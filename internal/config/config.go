/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"transaction-core-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	accountsTimeout, err := getEnvDuration("ACCOUNTS_CALL_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	breakerCooldown, err := getEnvDuration("ACCOUNTS_BREAKER_COOLDOWN", 30*time.Second)
	if err != nil {
		return nil, err
	}

	sweeperInterval, err := getEnvDuration("SWEEPER_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	pendingCutoff, err := getEnvDuration("SWEEPER_PENDING_CUTOFF", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	reversalWindow, err := getEnvDuration("REVERSAL_WINDOW", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Driver:          getEnvString("DB_DRIVER", models.DriverSQLite),
			Path:            getEnvString("DATABASE_PATH", "transactions.db"),
			URL:             getEnvString("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Accounts: models.AccountsConfig{
			BaseURL:          getEnvString("ACCOUNTS_BASE_URL", "http://localhost:8080"),
			CallTimeout:      accountsTimeout,
			MaxRetries:       uint64(getEnvInt("ACCOUNTS_MAX_RETRIES", 3)),
			BreakerThreshold: uint32(getEnvInt("ACCOUNTS_BREAKER_THRESHOLD", 5)),
			BreakerCooldown:  breakerCooldown,
		},
		Limits: models.LimitsConfig{
			Timezone:   getEnvString("LIMITS_TIMEZONE", "UTC"),
			LimitsFile: getEnvString("LIMITS_FILE", "limits.yaml"),
		},
		Audit: models.AuditConfig{
			BufferSize: getEnvInt("AUDIT_BUFFER_SIZE", 1024),
		},
		Sweeper: models.SweeperConfig{
			Interval:      sweeperInterval,
			PendingCutoff: pendingCutoff,
		},
		Engine: models.EngineConfig{
			ReversalWindow: reversalWindow,
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
