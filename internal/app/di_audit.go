package app

import (
	"fmt"

	auditHTTP "github.com/splitrx/splitrx/internal/audit/http"
	auditRepository "github.com/splitrx/splitrx/internal/audit/repository"
	auditUsecase "github.com/splitrx/splitrx/internal/audit/usecase"
)

// LedgerRepository returns the audit ledger repository instance.
func (c *Container) LedgerRepository() (auditUsecase.LedgerRepository, error) {
	var err error
	c.ledgerRepoInit.Do(func() {
		c.ledgerRepo, err = c.initLedgerRepository()
		if err != nil {
			c.initErrors["ledgerRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["ledgerRepo"]; exists {
		return nil, storedErr
	}
	return c.ledgerRepo, nil
}

// LedgerUseCase returns the audit ledger use case instance.
func (c *Container) LedgerUseCase() (auditUsecase.LedgerUseCase, error) {
	var err error
	c.ledgerUseCaseInit.Do(func() {
		c.ledgerUseCase, err = c.initLedgerUseCase()
		if err != nil {
			c.initErrors["ledgerUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["ledgerUseCase"]; exists {
		return nil, storedErr
	}
	return c.ledgerUseCase, nil
}

// AuditHandler returns the HTTP handler for ledger verification and listings.
func (c *Container) AuditHandler() (*auditHTTP.AuditHandler, error) {
	var err error
	c.auditHandlerInit.Do(func() {
		c.auditHandler, err = c.initAuditHandler()
		if err != nil {
			c.initErrors["auditHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditHandler"]; exists {
		return nil, storedErr
	}
	return c.auditHandler, nil
}

// initLedgerRepository creates the audit ledger repository instance.
func (c *Container) initLedgerRepository() (auditUsecase.LedgerRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for ledger repository: %w", err)
	}
	return auditRepository.NewPostgreSQLLedgerRepository(db), nil
}

// initLedgerUseCase creates the ledger use case with all its dependencies.
func (c *Container) initLedgerUseCase() (auditUsecase.LedgerUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for ledger use case: %w", err)
	}

	ledgerRepo, err := c.LedgerRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger repository for ledger use case: %w", err)
	}

	baseUseCase := auditUsecase.NewLedgerUseCase(ledgerRepo, txManager)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for ledger use case: %w", err)
		}
		return auditUsecase.NewLedgerUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initAuditHandler creates the audit HTTP handler with all its dependencies.
func (c *Container) initAuditHandler() (*auditHTTP.AuditHandler, error) {
	ledgerUseCase, err := c.LedgerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger use case for audit handler: %w", err)
	}

	userUseCase, err := c.UserUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get user use case for audit handler: %w", err)
	}

	return auditHTTP.NewAuditHandler(ledgerUseCase, userUseCase, c.Logger()), nil
}
