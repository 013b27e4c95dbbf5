package indexer

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxVotesPerProposal = 1000

type Service struct {
	engine     *gin.Engine
	indexer    *ChainIndexer
	listenAddr string
}

func NewService(listenAddr string, indexer *ChainIndexer) *Service {
	r := gin.Default()
	s := &Service{
		engine:     r,
		indexer:    indexer,
		listenAddr: listenAddr,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getVotes", s.handleGetVotes)
	s.engine.POST("/getTransfers", s.handleGetTransfers)
	s.engine.GET("/council", s.handleGetCouncil)
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

func (s *Service) Start() error {
	return s.engine.Run(s.listenAddr)
}

type ProposalInfo struct {
	Proposal Proposal       `json:"proposal"`
	Votes    []ProposalVote `json:"votes"`
}

type GetProposalsReq struct {
	ProposalId *uint64 `json:"proposalId"`
	Proposer   string  `json:"proposer"`
	Status     string  `json:"status"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
}

type GetProposalResponse struct {
	Proposals []ProposalInfo `json:"proposals"`
	Total     uint64         `json:"total"`
}

func pageSize(size int) int {
	if size <= 0 || size > maxVotesPerProposal {
		return 20
	}
	return size
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var response GetProposalResponse
	response.Proposals = make([]ProposalInfo, 0)
	var requestData GetProposalsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if requestData.ProposalId != nil {
		proposal, err := s.indexer.getProposalById(*requestData.ProposalId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		info, err := s.proposalInfo(*proposal)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, info)
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}

	proposals, total, err := s.indexer.getProposals(requestData.Status, requestData.Proposer, requestData.Page, pageSize(requestData.PageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	response.Total = total
	for _, proposal := range proposals {
		info, err := s.proposalInfo(proposal)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, info)
	}
	c.JSON(http.StatusOK, response)
}

func (s *Service) proposalInfo(proposal Proposal) (ProposalInfo, error) {
	id := proposal.ProposalID
	votes, _, err := s.indexer.getVotes(&id, "", 0, maxVotesPerProposal)
	if err != nil {
		return ProposalInfo{}, err
	}
	if votes == nil {
		votes = []ProposalVote{}
	}
	return ProposalInfo{Proposal: proposal, Votes: votes}, nil
}

type GetVotesReq struct {
	ProposalId *uint64 `json:"proposalId"`
	Voter      string  `json:"voter"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
}

type GetVotesResponse struct {
	Votes []ProposalVote `json:"votes"`
	Total uint64         `json:"total"`
}

func (s *Service) handleGetVotes(c *gin.Context) {
	var requestData GetVotesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	votes, total, err := s.indexer.getVotes(requestData.ProposalId, requestData.Voter, requestData.Page, pageSize(requestData.PageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if votes == nil {
		votes = []ProposalVote{}
	}
	c.JSON(http.StatusOK, GetVotesResponse{Votes: votes, Total: total})
}

type GetTransfersReq struct {
	ProposalId *uint64 `json:"proposalId"`
	To         string  `json:"to"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
}

type GetTransfersResponse struct {
	Transfers []Transfer `json:"transfers"`
	Total     uint64     `json:"total"`
}

func (s *Service) handleGetTransfers(c *gin.Context) {
	var requestData GetTransfersReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	transfers, total, err := s.indexer.getTransfers(requestData.ProposalId, requestData.To, requestData.Page, pageSize(requestData.PageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if transfers == nil {
		transfers = []Transfer{}
	}
	c.JSON(http.StatusOK, GetTransfersResponse{Transfers: transfers, Total: total})
}

func (s *Service) handleGetCouncil(c *gin.Context) {
	members, err := s.indexer.getCouncil()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if members == nil {
		members = []CouncilMember{}
	}
	c.JSON(http.StatusOK, gin.H{"council": members})
}
