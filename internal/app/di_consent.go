package app

import (
	"fmt"

	consentHTTP "github.com/splitrx/splitrx/internal/consent/http"
	consentRepository "github.com/splitrx/splitrx/internal/consent/repository"
	consentUsecase "github.com/splitrx/splitrx/internal/consent/usecase"
)

// ConsentRepository returns the consent repository instance.
func (c *Container) ConsentRepository() (consentUsecase.ConsentRepository, error) {
	var err error
	c.consentRepoInit.Do(func() {
		c.consentRepo, err = c.initConsentRepository()
		if err != nil {
			c.initErrors["consentRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consentRepo"]; exists {
		return nil, storedErr
	}
	return c.consentRepo, nil
}

// ConsentUseCase returns the consent use case instance.
func (c *Container) ConsentUseCase() (consentUsecase.UseCase, error) {
	var err error
	c.consentUseCaseInit.Do(func() {
		c.consentUseCase, err = c.initConsentUseCase()
		if err != nil {
			c.initErrors["consentUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consentUseCase"]; exists {
		return nil, storedErr
	}
	return c.consentUseCase, nil
}

// ConsentHandler returns the HTTP handler for consent and erasure.
func (c *Container) ConsentHandler() (*consentHTTP.ConsentHandler, error) {
	var err error
	c.consentHandlerInit.Do(func() {
		c.consentHandler, err = c.initConsentHandler()
		if err != nil {
			c.initErrors["consentHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consentHandler"]; exists {
		return nil, storedErr
	}
	return c.consentHandler, nil
}

// initConsentRepository creates the consent repository instance.
func (c *Container) initConsentRepository() (consentUsecase.ConsentRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for consent repository: %w", err)
	}
	return consentRepository.NewPostgreSQLConsentRepository(db), nil
}

// initConsentUseCase creates the consent use case with all its dependencies.
func (c *Container) initConsentUseCase() (consentUsecase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for consent use case: %w", err)
	}

	consentRepo, err := c.ConsentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent repository for consent use case: %w", err)
	}

	prescriptionRepo, err := c.PrescriptionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get prescription repository for consent use case: %w", err)
	}

	userRepo, err := c.UserRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get user repository for consent use case: %w", err)
	}

	userUseCase, err := c.UserUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get user use case for consent use case: %w", err)
	}

	ledgerUseCase, err := c.LedgerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger use case for consent use case: %w", err)
	}

	baseUseCase := consentUsecase.NewConsentUseCase(
		txManager,
		consentRepo,
		prescriptionRepo,
		userRepo,
		userUseCase,
		ledgerUseCase,
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for consent use case: %w", err)
		}
		return consentUsecase.NewUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initConsentHandler creates the consent HTTP handler with all its dependencies.
func (c *Container) initConsentHandler() (*consentHTTP.ConsentHandler, error) {
	consentUseCase, err := c.ConsentUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent use case for consent handler: %w", err)
	}

	return consentHTTP.NewConsentHandler(consentUseCase, c.Logger()), nil
}
